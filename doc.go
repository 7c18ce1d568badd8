/*
Package quill is a small task-graph engine for tool-using research pipelines.

A run threads an append-only MessageLog through named stages. Compute stages
produce one message each (usually by calling a language model) and are wrapped
in a bounded retry policy with exponential backoff. Tool stages execute the
tool-call requests found in the latest message and append one result per
request; tool failures never abort the run, they become content the issuing
stage can react to. After every stage a pure router inspects the last message
and picks the next stage, or END.

# Concept

The graph (stages, tools, routes) is static, read-only configuration built once
at startup, usually through package dsl or package pipeline. The engine holds no
per-run state, so one Engine serves any number of concurrent runs.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/quill"
		"github.com/aretw0/quill/pkg/domain"
		"github.com/aretw0/quill/pkg/dsl"
	)

	func main() {
		b := dsl.New()
		b.Add("research").Do(research).Tools(searchTools).LoopBack()
		b.Add("write").Do(write).Tools(reportTools).Finalize()

		eng, err := quill.New(b.MustBuild())
		if err != nil {
			log.Fatal(err)
		}

		seed := domain.NewMessageLog(domain.NewUserMessage("Research X"))
		for snapshot, err := range eng.Stream(context.Background(), seed) {
			if err != nil {
				log.Fatal(err)
			}
			last, _ := snapshot.Last()
			fmt.Println(last.Role, last.Content)
		}
	}
*/
package quill
