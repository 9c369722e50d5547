package diffdb

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/blockberries/abcistate/value"
)

// rootKey wraps state roots that are not mappings so the delta is still
// a jsondiffpatch object.
const rootKey = "$root"

// ErrInvalidPatch is returned by Apply for a patch that is not a delta
// mapping.
var ErrInvalidPatch = errors.New("invalid diff patch")

// Compute returns the jsondiffpatch delta turning prev into next, both
// canonical JSON. Mapping roots are diffed directly. Any other root, or a
// change of root kind, is diffed under rootKey. Identical states yield an
// empty mapping.
func Compute(prev, next []byte) (value.Value, error) {
	left, err := decode(prev)
	if err != nil {
		return value.Value{}, errors.WithMessage(err, "previous state")
	}
	right, err := decode(next)
	if err != nil {
		return value.Value{}, errors.WithMessage(err, "next state")
	}

	lm, lok := left.(map[string]interface{})
	rm, rok := right.(map[string]interface{})
	if !lok || !rok {
		lm = map[string]interface{}{rootKey: left}
		rm = map[string]interface{}{rootKey: right}
	}
	d := gojsondiff.New().CompareObjects(lm, rm)
	if !d.Modified() {
		return value.Mapping(nil), nil
	}
	delta, err := formatter.NewDeltaFormatter().Format(d)
	if err != nil {
		return value.Value{}, errors.Wrap(err, "failed to format delta")
	}
	return value.Parse([]byte(delta))
}

// Apply reproduces the next state from prev and a delta produced by
// Compute.
func Apply(prev value.Value, patch value.Value) (value.Value, error) {
	if patch.Kind() != value.KindMapping {
		return value.Value{}, errors.Wrapf(ErrInvalidPatch, "patch is a %s", patch.Kind())
	}
	if patch.Len() == 0 {
		return prev, nil
	}
	raw, err := value.Canonical(patch)
	if err != nil {
		return value.Value{}, err
	}
	d, err := gojsondiff.NewUnmarshaller().UnmarshalBytes(raw)
	if err != nil {
		return value.Value{}, errors.Wrap(err, "failed to decode delta")
	}

	wrapped := prev.Kind() != value.KindMapping || replacesRoot(prev, patch)
	var doc map[string]interface{}
	if wrapped {
		doc = map[string]interface{}{rootKey: prev.Interface()}
	} else {
		doc = prev.Interface().(map[string]interface{})
	}
	gojsondiff.New().ApplyPatch(doc, d)
	if wrapped {
		return value.FromInterface(doc[rootKey])
	}
	return value.FromInterface(doc)
}

// replacesRoot reports whether patch replaces a mapping root with a value
// of another kind. A plain mapping delta can never carry prev itself as
// the old value of one of its keys.
func replacesRoot(prev, patch value.Value) bool {
	if patch.Len() != 1 {
		return false
	}
	change, ok := patch.Get(rootKey)
	if !ok || change.Kind() != value.KindSequence {
		return false
	}
	items := change.Items()
	return len(items) == 2 && items[0].Equal(prev)
}

func decode(data []byte) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "invalid JSON")
	}
	return doc, nil
}
