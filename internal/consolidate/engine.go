package consolidate

import (
	"fmt"
	"sort"
	"time"

	"github.com/creditpipe/creditpipe/internal/config"
	"github.com/creditpipe/creditpipe/internal/extract"
	"github.com/creditpipe/creditpipe/internal/models"
)

// Source is one extraction result's parsed entities plus its provenance.
type Source struct {
	Method     string
	Confidence float64
	CreatedAt  time.Time
	Entities   *extract.Entities
}

// Variant is one source's reading of a disputed field.
type Variant struct {
	Method     string
	Value      string
	Confidence float64
}

// Comparison buckets every flattened field into agreed or disputed.
type Comparison struct {
	Similarities map[string]string    `json:"similarities"`
	Differences  map[string][]Variant `json:"differences"`
}

// Result is a consolidated entity set with the metadata describing how it
// was produced. ReportID and UpdatedAt are filled in by the store.
type Result struct {
	Entities *extract.Entities
	Metadata models.ConsolidationMetadata
}

// Engine reconciles sources under a named strategy. Given the same
// sources and strategy it always produces the same result.
type Engine struct {
	reviewThreshold float64
	conflictCap     float64
}

func NewEngine(cfg config.ConsolidationConfig) *Engine {
	return &Engine{
		reviewThreshold: cfg.ReviewThreshold,
		conflictCap:     cfg.ConflictCap,
	}
}

// rankSources orders best-first: confidence, then recency, then method
// name, so ranking never depends on caller ordering.
func rankSources(sources []Source) []Source {
	ranked := make([]Source, len(sources))
	copy(ranked, sources)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
		}
		return ranked[i].Method < ranked[j].Method
	})
	return ranked
}

// Compare flattens every source and reports field-level agreement. A key
// only one source saw counts as agreed; a conflict needs two readings.
func (e *Engine) Compare(sources []Source) *Comparison {
	ranked := rankSources(sources)

	flats := make([]map[string]string, len(ranked))
	keySet := make(map[string]bool)
	for i, s := range ranked {
		flats[i] = Flatten(s.Entities)
		for k := range flats[i] {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmp := &Comparison{
		Similarities: make(map[string]string),
		Differences:  make(map[string][]Variant),
	}
	for _, key := range keys {
		var variants []Variant
		distinct := make(map[string]bool)
		for i, flat := range flats {
			v, ok := flat[key]
			if !ok {
				continue
			}
			variants = append(variants, Variant{
				Method:     ranked[i].Method,
				Value:      v,
				Confidence: ranked[i].Confidence,
			})
			distinct[v] = true
		}
		if len(distinct) <= 1 {
			cmp.Similarities[key] = variants[0].Value
		} else {
			cmp.Differences[key] = variants
		}
	}
	return cmp
}

// Consolidate applies the strategy to the sources. highest_confidence and
// manual_review read entities from the best source; majority_vote merges
// field by field. Conflicts cap the confidence, and low confidence or an
// explicit manual_review strategy flags the report for a human.
func (e *Engine) Consolidate(sources []Source, strategy string) (*Result, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("consolidate: no usable extraction results")
	}
	if !models.ValidStrategy(strategy) {
		return nil, fmt.Errorf("consolidate: unknown strategy %q", strategy)
	}

	ranked := rankSources(sources)
	cmp := e.Compare(ranked)
	primary := ranked[0]

	var entities *extract.Entities
	if strategy == models.StrategyMajorityVote {
		entities = majorityMerge(ranked)
	} else {
		entities = primary.Entities
	}

	conflicts := len(cmp.Differences)
	confidence := primary.Confidence
	if conflicts > 0 && confidence > e.conflictCap {
		confidence = e.conflictCap
	}

	// Any open conflict or low confidence puts a human in the loop, as
	// does asking for manual review outright.
	review := strategy == models.StrategyManualReview ||
		confidence < e.reviewThreshold ||
		conflicts > 0

	return &Result{
		Entities: entities,
		Metadata: models.ConsolidationMetadata{
			PrimarySource:         primary.Method,
			ConfidenceLevel:       confidence,
			ConsolidationStrategy: strategy,
			ConflictCount:         conflicts,
			RequiresHumanReview:   review,
		},
	}, nil
}

// majorityValue picks the most common value from a ranked-order slice;
// ties go to the earliest entry, i.e. the most confident source.
func majorityValue[T comparable](vals []T) (T, bool) {
	var zero T
	if len(vals) == 0 {
		return zero, false
	}
	counts := make(map[T]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best := vals[0]
	for _, v := range vals {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

func majorityStr(vals []string) *string {
	if v, ok := majorityValue(vals); ok {
		return &v
	}
	return nil
}

func majorityF64(vals []float64) *float64 {
	if v, ok := majorityValue(vals); ok {
		return &v
	}
	return nil
}

func collectStr(out *[]string, v *string) {
	if v != nil && *v != "" {
		*out = append(*out, *v)
	}
}

func collectF64(out *[]float64, v *float64) {
	if v != nil {
		*out = append(*out, *v)
	}
}

func majorityMerge(ranked []Source) *extract.Entities {
	merged := &extract.Entities{}
	merged.Personal = mergePersonal(ranked)
	merged.Accounts = mergeAccounts(ranked)
	merged.Inquiries = mergeInquiries(ranked)
	merged.NegativeItems = mergeNegatives(ranked)
	merged.Collections = mergeCollections(ranked)
	return merged
}

func mergePersonal(ranked []Source) *models.PersonalInformation {
	var names, dobs, ssns, addrs, phones []string
	for _, s := range ranked {
		if s.Entities == nil || s.Entities.Personal == nil {
			continue
		}
		p := s.Entities.Personal
		collectStr(&names, p.FullName)
		collectStr(&dobs, p.DateOfBirth)
		collectStr(&ssns, p.SSNLast4)
		collectStr(&addrs, p.Address)
		collectStr(&phones, p.Phone)
	}
	merged := &models.PersonalInformation{
		FullName:    majorityStr(names),
		DateOfBirth: majorityStr(dobs),
		SSNLast4:    majorityStr(ssns),
		Address:     majorityStr(addrs),
		Phone:       majorityStr(phones),
	}
	if merged.FullName == nil && merged.DateOfBirth == nil && merged.SSNLast4 == nil &&
		merged.Address == nil && merged.Phone == nil {
		return nil
	}
	return merged
}

func mergeAccounts(ranked []Source) []models.CreditAccount {
	grouped := make(map[string][]models.CreditAccount)
	for _, s := range ranked {
		if s.Entities == nil {
			continue
		}
		for _, a := range s.Entities.Accounts {
			key := normKey(a.CreditorName)
			grouped[key] = append(grouped[key], a)
		}
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.CreditAccount
	for _, key := range keys {
		group := grouped[key]
		var numbers, types, statuses, opened, reported []string
		var balances, limits []float64
		for _, a := range group {
			collectStr(&numbers, a.AccountNumber)
			if a.AccountType != "" {
				types = append(types, a.AccountType)
			}
			collectStr(&statuses, a.Status)
			collectStr(&opened, a.OpenedDate)
			collectStr(&reported, a.ReportedDate)
			collectF64(&balances, a.Balance)
			collectF64(&limits, a.CreditLimit)
		}
		merged := models.CreditAccount{
			CreditorName:  group[0].CreditorName,
			AccountNumber: majorityStr(numbers),
			Balance:       majorityF64(balances),
			CreditLimit:   majorityF64(limits),
			Status:        majorityStr(statuses),
			OpenedDate:    majorityStr(opened),
			ReportedDate:  majorityStr(reported),
		}
		if t, ok := majorityValue(types); ok {
			merged.AccountType = t
		}
		out = append(out, merged)
	}
	return out
}

func mergeInquiries(ranked []Source) []models.CreditInquiry {
	grouped := make(map[string][]models.CreditInquiry)
	for _, s := range ranked {
		if s.Entities == nil {
			continue
		}
		for _, inq := range s.Entities.Inquiries {
			key := normKey(inq.InquirerName) + "|" + inq.InquiryDate
			grouped[key] = append(grouped[key], inq)
		}
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.CreditInquiry
	for _, key := range keys {
		group := grouped[key]
		merged := group[0]
		var types []string
		for _, inq := range group {
			types = append(types, inq.InquiryType)
		}
		if t, ok := majorityValue(types); ok {
			merged.InquiryType = t
		}
		out = append(out, merged)
	}
	return out
}

func mergeNegatives(ranked []Source) []models.NegativeItem {
	grouped := make(map[string]models.NegativeItem)
	for _, s := range ranked {
		if s.Entities == nil {
			continue
		}
		for _, n := range s.Entities.NegativeItems {
			key := n.ItemType + "|" + normKey(n.Description)
			if _, seen := grouped[key]; !seen {
				grouped[key] = n
			}
		}
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.NegativeItem, 0, len(keys))
	for _, key := range keys {
		out = append(out, grouped[key])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeCollections(ranked []Source) []models.Collection {
	grouped := make(map[string][]models.Collection)
	for _, s := range ranked {
		if s.Entities == nil {
			continue
		}
		for _, c := range s.Entities.Collections {
			grouped[normKey(c.AgencyName)] = append(grouped[normKey(c.AgencyName)], c)
		}
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.Collection
	for _, key := range keys {
		group := grouped[key]
		var creditors, statuses []string
		var amounts []float64
		eligible := false
		for _, c := range group {
			collectStr(&creditors, c.OriginalCreditor)
			collectStr(&statuses, c.Status)
			collectF64(&amounts, c.Amount)
			eligible = eligible || c.DisputeEligible
		}
		out = append(out, models.Collection{
			AgencyName:       group[0].AgencyName,
			OriginalCreditor: majorityStr(creditors),
			Amount:           majorityF64(amounts),
			Status:           majorityStr(statuses),
			DisputeEligible:  eligible,
		})
	}
	return out
}
