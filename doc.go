/*
Package muster is a declarative, reactive graph resolution engine.

An application is described as an immutable graph of node definitions: static
values and trees, references between them, computed nodes, stateful variables
and asynchronous sources. The engine resolves any node to a static result and
keeps subscribers up to date as the state behind it changes, recomputing only
what depends on the change and never emitting the same result twice.

# Concept

Definitions are data. Each node type declares the operations it supports
(evaluate, getChild, set, call, ...) and, for each one, the dependencies it
needs resolved first. The runtime caches one entry per (node, operation) while
anyone subscribes to it, tracks which entries read which, and tears everything
down once the last subscriber leaves.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/muster"
		"github.com/aretw0/muster/pkg/domain"
		"github.com/aretw0/muster/pkg/nodes"
	)

	func main() {
		graph := nodes.Tree(map[string]*domain.Definition{
			"count": nodes.Variable(3),
		})
		eng, err := muster.New(graph)
		if err != nil {
			log.Fatal(err)
		}

		// Watch the counter.
		stop := eng.Subscribe(nodes.Ref("count"), func(result *domain.Definition) {
			fmt.Println("count is", domain.ValueOf(result))
		})
		defer stop()

		// Decrement it once.
		if _, err := eng.Resolve(context.Background(), nodes.Decrement(nodes.Ref("count"))); err != nil {
			log.Fatal(err)
		}
	}
*/
package muster
