package claims

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strconv"

	"github.com/starford/claimline/internal/apperr"
)

// DefaultDaysSupply is used when a prescription carries no usable supply.
const DefaultDaysSupply = 30

var (
	rxDateKeys       = []string{"dos", "dateOfService", "serviceDate", "fillDate"}
	rxLabelKeys      = []string{"medication", "drugName", "displayName"}
	rxDaysSupplyKeys = []string{"daysSupply", "days_supply", "dayssupply"}

	lineStartKeys = []string{"serviceStart", "startDate", "fromDate", "dos"}
	lineEndKeys   = []string{"serviceEnd", "endDate", "toDate"}

	// lineAmountKeys lists charged, allowed and paid, in that order.
	lineAmountKeys = [3][]string{{"chargedAmount", "charged"}, {"allowedAmount", "allowed"}, {"paidAmount", "paid"}}

	// lineKnownKeys are mapped into ServiceFacts; the rest go to Extra.
	// Amounts also land in Extra, as written, when normalizing changed them.
	lineKnownKeys = map[string]struct{}{
		"id": {}, "lineId": {}, "serviceStart": {}, "startDate": {}, "fromDate": {}, "dos": {},
		"serviceEnd": {}, "endDate": {}, "toDate": {}, "description": {}, "serviceType": {},
		"procedureCode": {}, "cpt": {}, "chargedAmount": {}, "charged": {},
		"allowedAmount": {}, "allowed": {}, "paidAmount": {}, "paid": {},
	}
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalizer turns claims documents into TimelineDocuments. It holds no
// per-call state and is safe for concurrent use.
type Normalizer struct {
	cfg    Config
	dates  *DateParser
	logger *slog.Logger
}

// NewNormalizer merges cfg with the defaults and validates the result.
// A nil logger discards warnings (they are still returned on the document).
func NewNormalizer(cfg Config, logger *slog.Logger) (*Normalizer, error) {
	merged, err := cfg.WithDefaults()
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("claims: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{
		cfg:    merged,
		dates:  NewDateParser(merged.DateFormat),
		logger: logger,
	}, nil
}

// Config returns the effective (merged) configuration.
func (n *Normalizer) Config() Config { return n.cfg }

// NormalizeBytes decodes a raw file buffer and normalizes it.
func (n *Normalizer) NormalizeBytes(data []byte) (*TimelineDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", apperr.ErrInvalidDocument, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after top-level value", apperr.ErrInvalidDocument)
	}
	return n.Normalize(doc)
}

// Normalize converts a decoded JSON document. It fails with
// apperr.ErrInvalidDocument when document is not an object and with
// apperr.ErrNoClaimsFound when no item survives. Bad individual records
// are skipped and reported in the document's Warnings.
func (n *Normalizer) Normalize(document any) (*TimelineDocument, error) {
	root, ok := document.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %s, want object", apperr.ErrInvalidDocument, jsonType(document))
	}

	acc := &accumulator{ids: make(map[string]int)}
	n.prescriptions(root, n.cfg.RxTBAPath, KindPrescriptionPending, acc)
	n.prescriptions(root, n.cfg.RxHistoryPath, KindPrescriptionHistory, acc)
	n.services(root, acc)

	for _, w := range acc.warnings {
		n.logger.Warn("claims: record skipped",
			slog.String("section", w.Section),
			slog.String("position", w.Position),
			slog.String("error", w.Message))
	}

	if len(acc.items) == 0 {
		return nil, fmt.Errorf("%w: %d record(s) skipped", apperr.ErrNoClaimsFound, len(acc.warnings))
	}

	items := acc.items
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Interval.Start.After(items[j].Interval.Start)
	})

	span := items[0].Interval
	seen := make(map[Kind]struct{}, 3)
	var kinds []Kind
	for _, it := range items {
		span = span.Union(it.Interval)
		if _, dup := seen[it.Kind]; !dup {
			seen[it.Kind] = struct{}{}
			kinds = append(kinds, it.Kind)
		}
	}

	return &TimelineDocument{
		Items:    items,
		Span:     span,
		Summary:  Summary{TotalItems: len(items), Kinds: kinds},
		Warnings: acc.warnings,
	}, nil
}

// accumulator collects items and diagnostics across sections.
type accumulator struct {
	items    []ClaimItem
	warnings []Warning
	ids      map[string]int
}

func (a *accumulator) add(it ClaimItem) {
	a.ids[it.ID]++
	if c := a.ids[it.ID]; c > 1 {
		it.ID = it.ID + "#" + strconv.Itoa(c)
	}
	a.items = append(a.items, it)
}

func (a *accumulator) warn(section, position string, err error) {
	a.warnings = append(a.warnings, Warning{
		Section:  section,
		Position: position,
		Message:  err.Error(),
		Err:      err,
	})
}

func (n *Normalizer) prescriptions(root map[string]any, path string, kind Kind, acc *accumulator) {
	section := kind.Section()
	raw, ok := lookup(root, path)
	if !ok || raw == nil {
		return
	}
	list, ok := raw.([]any)
	if !ok {
		acc.warn(section, path, fmt.Errorf("%w: %s is %s, want array", apperr.ErrMalformedSection, path, jsonType(raw)))
		return
	}
	for i, el := range list {
		pos := strconv.Itoa(i + 1)
		rec, ok := el.(map[string]any)
		if !ok {
			acc.warn(section, pos, fmt.Errorf("record is %s, want object", jsonType(el)))
			continue
		}
		it, err := n.prescription(rec, kind, i)
		if err != nil {
			acc.warn(section, pos, err)
			continue
		}
		acc.add(it)
	}
}

func (n *Normalizer) prescription(rec map[string]any, kind Kind, i int) (ClaimItem, error) {
	start, err := n.dates.Parse(first(rec, rxDateKeys...))
	if err != nil {
		return ClaimItem{}, err
	}
	days, ok := leadingInt(first(rec, rxDaysSupplyKeys...))
	if !ok {
		days = DefaultDaysSupply
	}

	label := firstText(rec, rxLabelKeys...)
	if label == "" {
		label = fmt.Sprintf("%s Claim %d", kind.Category(), i+1)
	}
	id := text(rec["id"])
	if id == "" {
		id = fmt.Sprintf("%s_%d", kind.Section(), i+1)
	}

	return ClaimItem{
		ID:       id,
		Kind:     kind,
		Label:    label,
		Color:    n.cfg.ColorFor(kind),
		Interval: Interval{Start: start, End: start.AddDate(0, 0, days)},
		Attributes: Attributes{
			Prescription: &PrescriptionFacts{
				Dosage:     orUnknown(text(rec["dosage"])),
				Prescriber: orUnknown(text(rec["prescriber"])),
				Pharmacy:   orUnknown(text(rec["pharmacy"])),
				NDC:        orUnknown(text(rec["ndc"])),
				Quantity:   orUnknown(firstText(rec, "quantity", "qty")),
				Copay:      money(rec["copay"]),
				DaysSupply: days,
			},
			Extra: maps.Clone(rec),
		},
	}, nil
}

func (n *Normalizer) services(root map[string]any, acc *accumulator) {
	const section = SectionMedHistory
	path := n.cfg.MedHistoryPath
	raw, ok := lookup(root, path)
	if !ok || raw == nil {
		return
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		wrapped, ok := v["claims"].([]any)
		if !ok {
			acc.warn(section, path, fmt.Errorf("%w: %s has no claims list", apperr.ErrMalformedSection, path))
			return
		}
		list = wrapped
	default:
		acc.warn(section, path, fmt.Errorf("%w: %s is %s, want array or object", apperr.ErrMalformedSection, path, jsonType(raw)))
		return
	}

	for ci, el := range list {
		claim, ok := el.(map[string]any)
		if !ok {
			acc.warn(section, strconv.Itoa(ci+1), fmt.Errorf("%w: claim is %s, want object", apperr.ErrMalformedSection, jsonType(el)))
			continue
		}
		lines, ok := claim["lines"].([]any)
		if !ok {
			acc.warn(section, strconv.Itoa(ci+1), fmt.Errorf("%w: claim has no lines list", apperr.ErrMalformedSection))
			continue
		}
		for li, lel := range lines {
			pos := fmt.Sprintf("%d.%d", ci+1, li+1)
			line, ok := lel.(map[string]any)
			if !ok {
				acc.warn(section, pos, fmt.Errorf("line is %s, want object", jsonType(lel)))
				continue
			}
			it, err := n.serviceLine(claim, line, ci, li)
			if err != nil {
				acc.warn(section, pos, err)
				continue
			}
			acc.add(it)
		}
	}
}

func (n *Normalizer) serviceLine(claim, line map[string]any, ci, li int) (ClaimItem, error) {
	start, err := n.dates.Parse(first(line, lineStartKeys...))
	if err != nil {
		return ClaimItem{}, err
	}
	end := start
	if rawEnd := first(line, lineEndKeys...); rawEnd != nil {
		if end, err = n.dates.Parse(rawEnd); err != nil {
			return ClaimItem{}, fmt.Errorf("service end: %w", err)
		}
	}

	claimID := firstText(claim, "claimId", "id")
	provider := firstText(claim, "provider", "providerName")
	serviceType := text(line["serviceType"])

	label := firstText(line, "description")
	if label == "" {
		label = serviceType
	}
	if label == "" {
		label = provider
	}
	if label == "" {
		label = fmt.Sprintf("%s %d-%d", KindMedicalService.Category(), ci+1, li+1)
	}

	id := firstText(line, "id", "lineId")
	switch {
	case id != "":
	case claimID != "":
		id = fmt.Sprintf("%s-%d", claimID, li+1)
	default:
		id = fmt.Sprintf("%s_%d_%d", SectionMedHistory, ci+1, li+1)
	}

	var extra map[string]any
	for k, v := range line {
		if _, known := lineKnownKeys[k]; known {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}

	var amounts [len(lineAmountKeys)]string
	for i, keys := range lineAmountKeys {
		k, v := firstKey(line, keys...)
		amounts[i] = money(v)
		if v != nil && amounts[i] != text(v) {
			if extra == nil {
				extra = make(map[string]any)
			}
			extra[k] = v
		}
	}

	return ClaimItem{
		ID:       id,
		Kind:     KindMedicalService,
		Label:    label,
		Color:    n.cfg.ColorFor(KindMedicalService),
		Interval: Interval{Start: start, End: end},
		Attributes: Attributes{
			Service: &ServiceFacts{
				ClaimID:       orUnknown(claimID),
				Provider:      orUnknown(provider),
				ServiceType:   orUnknown(serviceType),
				ProcedureCode: orUnknown(firstText(line, "procedureCode", "cpt")),
				ChargedAmount: amounts[0],
				AllowedAmount: amounts[1],
				PaidAmount:    amounts[2],
			},
			Extra: extra,
		},
	}, nil
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
