package pack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when a document is neither valid JSON nor valid YAML.
var ErrMalformed = errors.New("malformed pack document")

// Normalizer turns heterogeneous pack documents into canonical, validated packs.
// It is deterministic and safe for concurrent use.
type Normalizer struct {
	logger     *slog.Logger
	knownPacks map[string]bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used to report dropped descriptors.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// WithKnownPacks restricts handoff targets to the given pack ids.
// Without it handoff targets are checked when the handoff happens.
func WithKnownPacks(ids ...string) Option {
	return func(n *Normalizer) {
		n.knownPacks = make(map[string]bool, len(ids))
		for _, id := range ids {
			n.knownPacks[id] = true
		}
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize parses raw (JSON, or YAML converted to JSON) and returns a validated pack.
// fallbackID is used when the document declares no pack id.
// Structural defects are reported as *domain.ValidationError; no partially valid pack is returned.
func (n *Normalizer) Normalize(raw []byte, fallbackID string) (*domain.Pack, error) {
	data := bytes.TrimSpace(raw)
	if !gjson.ValidBytes(data) {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		data = converted
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &domain.ValidationError{PackID: fallbackID, Reason: "decision pack is not an object"}
	}

	packID := first(root, packIDKeys...).String()
	if packID == "" {
		packID = fallbackID
	}
	if packID == "" {
		packID = "unknown"
	}
	title := first(root, packTitleKeys...).String()
	if title == "" {
		title = packID
	}
	version := first(root, packVersionKeys...).String()
	if version == "" {
		version = domain.DefaultPackVersion
	}
	entry := first(root, packEntryKeys...).String()

	nodes, order, err := n.normalizeNodes(packID, first(root, packNodesKeys...))
	if err != nil {
		return nil, err
	}

	p := domain.NewPack(packID, title, version, entry, nodes, order)
	p.Source = first(root, packSourceKeys...).String()

	if err := p.Validate(n.knownPacks); err != nil {
		return nil, err
	}
	return p, nil
}

func (n *Normalizer) normalizeNodes(packID string, raw gjson.Result) (map[string]domain.Node, []string, error) {
	nodes := make(map[string]domain.Node)
	var order []string
	var err error

	add := func(id string, value gjson.Result) bool {
		if _, dup := nodes[id]; dup {
			err = &domain.ValidationError{PackID: packID, NodeID: id, Reason: "duplicate node id"}
			return false
		}
		var node domain.Node
		node, err = n.normalizeNode(packID, id, value)
		if err != nil {
			return false
		}
		nodes[id] = node
		order = append(order, id)
		return true
	}

	switch {
	case raw.IsArray():
		i := 0
		raw.ForEach(func(_, value gjson.Result) bool {
			i++
			id := first(value, nodeIDKeys...).String()
			if id == "" {
				id = fmt.Sprintf("node_%d", i)
			}
			return add(id, value)
		})
	case raw.IsObject():
		raw.ForEach(func(key, value gjson.Result) bool {
			return add(key.String(), value)
		})
	default:
		return nil, nil, &domain.ValidationError{PackID: packID, Reason: "decision pack missing nodes (expected nodes as object or array)"}
	}
	if err != nil {
		return nil, nil, err
	}
	return nodes, order, nil
}

func (n *Normalizer) normalizeNode(packID, id string, r gjson.Result) (domain.Node, error) {
	node := domain.Node{
		ID:    id,
		Title: first(r, nodeTitleKeys...).String(),
		Body:  first(r, nodeBodyKeys...).String(),
		Text:  first(r, nodeTextKeys...).String(),
	}

	rawChoices := first(r, nodeChoicesKeys...)
	hasChoices := rawChoices.IsArray() || rawChoices.IsObject()

	rawType := strings.ToLower(strings.TrimSpace(first(r, nodeTypeKeys...).String()))
	switch {
	case rawType == "" && hasChoices:
		node.Type = domain.NodeTypeDecision
	case rawType == "":
		node.Type = domain.NodeTypeInfo
	default:
		t, ok := typeAliases[rawType]
		if !ok {
			return domain.Node{}, &domain.ValidationError{PackID: packID, NodeID: id, Reason: fmt.Sprintf("unknown node type %q", rawType)}
		}
		node.Type = t
	}

	switch node.Type {
	case domain.NodeTypeDecision:
		choices, err := normalizeChoices(packID, id, rawChoices)
		if err != nil {
			return domain.Node{}, err
		}
		node.Choices = choices
	case domain.NodeTypeInfo, domain.NodeTypeConnector:
		node.Next = first(r, nodeNextKeys...).String()
	case domain.NodeTypeHandoff:
		node.Handoff = &domain.Handoff{
			TargetPackID: first(r, handoffTargetKeys...).String(),
			Reason:       first(r, handoffReasonKeys...).String(),
		}
	}

	node.Effects = n.normalizeEffects(packID, id, first(r, nodeEffectsKeys...))
	node.Notes = normalizeNotes(r)
	return node, nil
}

// normalizeChoices keeps choices in document order. A choice must name its
// target; an explicit null (or empty string) target marks a terminal choice.
func normalizeChoices(packID, nodeID string, raw gjson.Result) ([]domain.Choice, error) {
	var choices []domain.Choice
	var err error
	missing := func(key string) error {
		return &domain.ValidationError{PackID: packID, NodeID: nodeID, Choice: key, Reason: "choice missing target (next/to)"}
	}

	if raw.IsObject() {
		// {key: target} or {key: {label, next}}
		raw.ForEach(func(key, value gjson.Result) bool {
			c := domain.Choice{Key: key.String()}
			if value.IsObject() {
				if !present(value, choiceTargetKeys...) {
					err = missing(c.Key)
					return false
				}
				c.Label = first(value, choiceLabelKeys...).String()
				c.Target = first(value, choiceTargetKeys...).String()
			} else if value.Type != gjson.Null {
				c.Target = value.String()
			}
			if c.Label == "" {
				c.Label = domain.ChoiceLabel(c)
			}
			choices = append(choices, c)
			return true
		})
		if err != nil {
			return nil, err
		}
		return choices, nil
	}

	raw.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		label := first(value, choiceLabelKeys...).String()
		if label == "" {
			return true
		}
		key := first(value, choiceKeyKeys...).String()
		if key == "" {
			key = strings.ToLower(label)
		}
		if !present(value, choiceTargetKeys...) {
			err = missing(key)
			return false
		}
		choices = append(choices, domain.Choice{
			Key:    key,
			Label:  label,
			Target: first(value, choiceTargetKeys...).String(),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return choices, nil
}

func (n *Normalizer) normalizeEffects(packID, nodeID string, raw gjson.Result) []domain.Effect {
	if !raw.IsArray() {
		return nil
	}
	var effects []domain.Effect
	for i, item := range raw.Array() {
		var eff domain.Effect
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &eff,
		})
		if err == nil {
			err = dec.Decode(item.Value())
		}
		if err != nil || eff.Type == "" {
			n.logger.Debug("dropping effect descriptor", "pack_id", packID, "node_id", nodeID, "index", i, "err", err)
			continue
		}
		eff.Type = strings.ToUpper(strings.TrimSpace(eff.Type))
		effects = append(effects, eff)
	}
	return effects
}

func normalizeNotes(r gjson.Result) domain.NodeNotes {
	var notes domain.NodeNotes
	raw := r.Get("notes")
	switch {
	case raw.IsObject():
		notes.Directives = stringList(raw.Get("directives"))
		notes.Hints = stringList(raw.Get("hints"))
		notes.Notes = noteList(raw.Get("notes"))
	case raw.IsArray():
		notes.Notes = noteList(raw)
	case raw.Type == gjson.String:
		notes.Notes = []domain.Note{{Body: raw.String()}}
	}
	notes.Directives = append(notes.Directives, stringList(r.Get("directives"))...)
	notes.Hints = append(notes.Hints, stringList(r.Get("hints"))...)
	return notes
}

func stringList(r gjson.Result) []string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if !r.IsArray() {
		if s := r.String(); s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		if s := v.String(); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func noteList(r gjson.Result) []domain.Note {
	if !r.IsArray() {
		return nil
	}
	var out []domain.Note
	r.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			out = append(out, domain.Note{
				Title: first(v, noteTitleKeys...).String(),
				Body:  first(v, noteBodyKeys...).String(),
			})
		} else if s := v.String(); s != "" {
			out = append(out, domain.Note{Body: s})
		}
		return true
	})
	return out
}

// present reports whether any alias is set, including to null.
func present(r gjson.Result, keys ...string) bool {
	for _, k := range keys {
		if r.Get(k).Exists() {
			return true
		}
	}
	return false
}

// first returns the first alias present with a non-null value.
func first(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}
