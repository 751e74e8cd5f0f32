/*
Package dsl provides a fluent Go builder for decision packs.

It is an alternative to JSON or YAML documents when packs are generated in code,
embedded in a host program or written inline in tests.

Example usage:

	b := dsl.New("figure1").Title("Figure 1")

	b.Add("start").
		Decision("Did the failure occur during the test?").
		Choice("yes", "Yes", "handoff").
		Choice("no", "No", "done")

	b.Add("handoff").Handoff("figure2", "classify the failure")
	b.Add("done").Outcome("No deficiency")

	p, err := b.Build()
	if err != nil {
		return err
	}
	eng, _ := ddt.New("", ddt.WithSource(dsl.MustSource(p, figure2Pack)))
*/
package dsl
