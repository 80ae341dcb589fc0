/*
Package dsl provides a fluent Go API for constructing flow definitions.

It produces the same domain.FlowDefinition the visual editor publishes, which
makes it convenient for tests, examples and flows kept in code.

	b := dsl.New()
	b.Add("start").Start("Welcome!").Go("ask")
	b.Add("ask").Ask("What is your name?", "name").Go("greet")
	b.Add("greet").Send("Hello {{name}}").Go("end")
	b.Add("end").End("")
	def, err := b.Build()

Nodes keep the order in which they were first added, so stage addresses are
stable across builds.
*/
package dsl
