package suggest

import (
	"context"

	"github.com/rxdesk/rxdesk/internal/domain/selection"
)

// StubClient answers from a fixed catalogue. Condition-specific formulations
// come first, followed by the general ones.
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

var stubGeneral = []selection.Candidate{
	{
		Name:              "Ashwagandharishta",
		Description:       "Ashwagandha, Musli, Manjistha. Restores strength and relieves fatigue.",
		RecommendedDosage: "15-20 ml with equal water",
		Timing:            "After meals, twice daily",
	},
	{
		Name:              "Triphala Churna",
		Description:       "Amalaki, Bibhitaki, Haritaki. Gentle digestive and detoxifier.",
		RecommendedDosage: "1 teaspoon with warm water",
		Timing:            "Before bedtime",
	},
	{
		Name:              "Chyawanprash",
		Description:       "Amla based polyherbal jam. General immunity and vitality.",
		RecommendedDosage: "1-2 teaspoons",
		Timing:            "Morning, with warm milk",
		Precautions:       "Monitor sugar intake in diabetics",
	},
}

var stubByCondition = map[string][]selection.Candidate{
	"Arthritis": {{
		Name:              "Yogaraj Guggulu",
		Description:       "Guggulu with Triphala and Chitrak. Joint pain and stiffness.",
		RecommendedDosage: "2 tablets",
		Timing:            "After meals, twice daily",
	}},
	"Diabetes": {{
		Name:              "Nishamalaki Churna",
		Description:       "Haridra and Amalaki. Supports glycaemic control.",
		RecommendedDosage: "3 g with water",
		Timing:            "Before meals",
	}},
	"Insomnia": {{
		Name:              "Brahmi Vati",
		Description:       "Brahmi, Shankhpushpi, Vacha. Calms the mind and aids sleep.",
		RecommendedDosage: "1 tablet",
		Timing:            "Before bedtime",
	}},
	"Gastric Issues": {{
		Name:              "Avipattikar Churna",
		Description:       "Trikatu, Triphala, Lavang. Relieves hyperacidity.",
		RecommendedDosage: "3-5 g with water",
		Timing:            "Before meals",
	}},
}

func (s *StubClient) Suggest(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meds := []selection.Candidate{}
	for _, c := range req.HealthConditions {
		meds = append(meds, stubByCondition[c]...)
	}
	meds = append(meds, stubGeneral...)
	return &Response{Success: true, Medicines: meds}, nil
}
