package batch

import (
	"bytes"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/starford/claimline/internal/claims"
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	errNotJSON    = errors.New("not valid JSON")
	errNotObject  = errors.New("top-level value is not an object")
	errNoSections = errors.New("no claims sections found")
)

// shape is the cheap structural reading of a claims file.
type shape struct {
	items int
	kinds []claims.Kind
}

// probe checks the document shape without normalizing it. A file is valid
// when at least one configured section has the expected container type.
func probe(data []byte, cfg claims.Config) (shape, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !gjson.ValidBytes(data) {
		return shape{}, errNotJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return shape{}, errNotObject
	}

	var (
		out   shape
		found bool
	)
	count := func(kind claims.Kind, n int) {
		found = true
		if n > 0 {
			out.items += n
			out.kinds = append(out.kinds, kind)
		}
	}

	for _, sec := range []struct {
		kind claims.Kind
		path string
	}{
		{claims.KindPrescriptionPending, cfg.RxTBAPath},
		{claims.KindPrescriptionHistory, cfg.RxHistoryPath},
	} {
		if r := root.Get(escapePath(sec.path)); r.IsArray() {
			count(sec.kind, objects(r))
		}
	}

	med := root.Get(escapePath(cfg.MedHistoryPath))
	if med.IsObject() {
		med = med.Get("claims")
	}
	if med.IsArray() {
		lines := 0
		med.ForEach(func(_, claim gjson.Result) bool {
			if l := claim.Get("lines"); claim.IsObject() && l.IsArray() {
				lines += objects(l)
			}
			return true
		})
		count(claims.KindMedicalService, lines)
	}

	if !found {
		return shape{}, errNoSections
	}
	return out, nil
}

func objects(arr gjson.Result) int {
	n := 0
	arr.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			n++
		}
		return true
	})
	return n
}

// escapePath turns a dotted key path into a gjson path with literal keys.
func escapePath(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		parts[i] = gjson.Escape(p)
	}
	return strings.Join(parts, ".")
}
