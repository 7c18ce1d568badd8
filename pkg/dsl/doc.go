/*
Package dsl provides a fluent builder for constructing quill task graphs in Go.

Stages are chained in the order they are added: a stage without pending tool
requests hands over to the next stage, and the last stage hands over to END.
A stage that declares tools gets a companion tool stage (named "<stage>_tools"
by default) which either loops back to the stage or finalizes the run.

Example usage:

	package main

	import (
		"github.com/aretw0/quill/pkg/domain"
		"github.com/aretw0/quill/pkg/dsl"
	)

	func main() {
		b := dsl.New()

		b.Add("research").
			Do(research).
			Retry(policy).
			Tools(searchTools).
			LoopBack()

		b.Add("write").
			Do(write).
			Tools(reportTools).
			Finalize()

		g, err := b.Build()
		// ... pass g to quill.New(...)
	}
*/
package dsl
