/*
Package pack normalizes decision pack documents into canonical domain.Pack values.

Documents may use any of the field spellings in the alias table, may store nodes
as an object map or an array, and may be written in YAML. Normalization is
deterministic and either yields a fully validated pack or an error naming the
offending node or choice.

The Loader composes a ports.PackSource with the Normalizer and optionally caches
packs, invalidating them when a watchable source reports a change.
*/
package pack
