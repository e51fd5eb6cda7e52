package consolidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditpipe/creditpipe/internal/config"
	"github.com/creditpipe/creditpipe/internal/extract"
	"github.com/creditpipe/creditpipe/internal/models"
)

func strp(s string) *string   { return &s }
func f64p(v float64) *float64 { return &v }

func testEngine() *Engine {
	return NewEngine(config.ConsolidationConfig{
		ReviewThreshold: 0.70,
		ConflictCap:     0.85,
	})
}

func entitiesWithBalance(name string, balance float64) *extract.Entities {
	return &extract.Entities{
		Personal: &models.PersonalInformation{FullName: strp(name)},
		Accounts: []models.CreditAccount{{
			CreditorName: "Capital One",
			AccountType:  "Revolving Credit",
			Balance:      f64p(balance),
		}},
	}
}

func TestCompare_BucketsAgreedAndDisputed(t *testing.T) {
	sources := []Source{
		{Method: "docai", Confidence: 0.9, Entities: entitiesWithBalance("John Smith", 1250.00)},
		{Method: "textify", Confidence: 0.8, Entities: entitiesWithBalance("John Smith", 1300.00)},
	}

	cmp := testEngine().Compare(sources)
	assert.Equal(t, "John Smith", cmp.Similarities["personal.full_name"])

	variants := cmp.Differences["account.capital_one.balance"]
	require.Len(t, variants, 2)
	assert.Equal(t, "docai", variants[0].Method)
	assert.Equal(t, "1250.00", variants[0].Value)
	assert.Equal(t, "1300.00", variants[1].Value)
}

func TestCompare_SingleSourceFieldIsAgreed(t *testing.T) {
	withPhone := entitiesWithBalance("John Smith", 1250.00)
	withPhone.Personal.Phone = strp("555-0134")

	cmp := testEngine().Compare([]Source{
		{Method: "docai", Confidence: 0.9, Entities: withPhone},
		{Method: "textify", Confidence: 0.8, Entities: entitiesWithBalance("John Smith", 1250.00)},
	})

	assert.Equal(t, "555-0134", cmp.Similarities["personal.phone"])
	assert.Empty(t, cmp.Differences)
}

func TestConsolidate_HighestConfidence(t *testing.T) {
	sources := []Source{
		{Method: "textify", Confidence: 0.75, Entities: entitiesWithBalance("John Smith", 1300.00)},
		{Method: "docai", Confidence: 0.92, Entities: entitiesWithBalance("John Smith", 1250.00)},
	}

	res, err := testEngine().Consolidate(sources, models.StrategyHighestConfidence)
	require.NoError(t, err)

	assert.Equal(t, "docai", res.Metadata.PrimarySource)
	require.Len(t, res.Entities.Accounts, 1)
	assert.Equal(t, 1250.00, *res.Entities.Accounts[0].Balance)
	assert.Equal(t, 1, res.Metadata.ConflictCount)
	assert.Equal(t, 0.85, res.Metadata.ConfidenceLevel, "conflicts cap the confidence")
	assert.True(t, res.Metadata.RequiresHumanReview, "open conflicts need a human")
}

func TestConsolidate_NoConflictKeepsConfidence(t *testing.T) {
	sources := []Source{
		{Method: "docai", Confidence: 0.92, Entities: entitiesWithBalance("John Smith", 1250.00)},
		{Method: "textify", Confidence: 0.75, Entities: entitiesWithBalance("John Smith", 1250.00)},
	}

	res, err := testEngine().Consolidate(sources, models.StrategyHighestConfidence)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Metadata.ConflictCount)
	assert.Equal(t, 0.92, res.Metadata.ConfidenceLevel)
	assert.False(t, res.Metadata.RequiresHumanReview)
}

func TestConsolidate_MajorityVote(t *testing.T) {
	sources := []Source{
		{Method: "docai", Confidence: 0.9, Entities: entitiesWithBalance("John Smith", 1250.00)},
		{Method: "textify", Confidence: 0.8, Entities: entitiesWithBalance("Jon Smith", 1300.00)},
		{Method: "pdftext", Confidence: 0.6, Entities: entitiesWithBalance("Jon Smith", 1300.00)},
	}

	res, err := testEngine().Consolidate(sources, models.StrategyMajorityVote)
	require.NoError(t, err)

	assert.Equal(t, "Jon Smith", *res.Entities.Personal.FullName, "two sources outvote one")
	require.Len(t, res.Entities.Accounts, 1)
	assert.Equal(t, 1300.00, *res.Entities.Accounts[0].Balance)
	assert.Equal(t, "docai", res.Metadata.PrimarySource)
}

func TestConsolidate_MajorityTieGoesToConfidence(t *testing.T) {
	sources := []Source{
		{Method: "docai", Confidence: 0.9, Entities: entitiesWithBalance("John Smith", 1250.00)},
		{Method: "textify", Confidence: 0.8, Entities: entitiesWithBalance("Jon Smith", 1300.00)},
	}

	res, err := testEngine().Consolidate(sources, models.StrategyMajorityVote)
	require.NoError(t, err)
	assert.Equal(t, "John Smith", *res.Entities.Personal.FullName)
	assert.Equal(t, 1250.00, *res.Entities.Accounts[0].Balance)
}

func TestConsolidate_ManualReviewAlwaysFlags(t *testing.T) {
	sources := []Source{
		{Method: "docai", Confidence: 0.95, Entities: entitiesWithBalance("John Smith", 1250.00)},
	}

	res, err := testEngine().Consolidate(sources, models.StrategyManualReview)
	require.NoError(t, err)
	assert.True(t, res.Metadata.RequiresHumanReview)
	assert.Equal(t, "docai", res.Metadata.PrimarySource)
}

func TestConsolidate_LowConfidenceFlagsReview(t *testing.T) {
	sources := []Source{
		{Method: "pdftext", Confidence: 0.45, Entities: entitiesWithBalance("John Smith", 1250.00)},
	}

	res, err := testEngine().Consolidate(sources, models.StrategyHighestConfidence)
	require.NoError(t, err)
	assert.True(t, res.Metadata.RequiresHumanReview)
}

func TestConsolidate_Deterministic(t *testing.T) {
	a := Source{Method: "docai", Confidence: 0.9, CreatedAt: time.Unix(100, 0), Entities: entitiesWithBalance("John Smith", 1250.00)}
	b := Source{Method: "textify", Confidence: 0.8, CreatedAt: time.Unix(200, 0), Entities: entitiesWithBalance("Jon Smith", 1300.00)}
	c := Source{Method: "pdftext", Confidence: 0.8, CreatedAt: time.Unix(50, 0), Entities: entitiesWithBalance("Jon Smith", 1250.00)}

	first, err := testEngine().Consolidate([]Source{a, b, c}, models.StrategyMajorityVote)
	require.NoError(t, err)
	second, err := testEngine().Consolidate([]Source{c, a, b}, models.StrategyMajorityVote)
	require.NoError(t, err)

	assert.Equal(t, first, second, "source order must not change the outcome")
}

func TestConsolidate_Errors(t *testing.T) {
	_, err := testEngine().Consolidate(nil, models.StrategyHighestConfidence)
	assert.Error(t, err)

	_, err = testEngine().Consolidate(
		[]Source{{Method: "docai", Confidence: 0.9, Entities: entitiesWithBalance("John Smith", 1.00)}},
		"coin_flip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coin_flip")
}
