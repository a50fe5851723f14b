package interview

import "time"

// Built-in archetype ids.
const (
	TypeGeneralDiscovery       = "general_discovery"
	TypeFinancialQualification = "financial_qualification"
	TypeServiceRequest         = "service_request"
	TypeClientOnboarding       = "client_onboarding"
)

// UrgencyOptions is the service-request urgency taxonomy, most urgent first.
//
//nolint:gochecknoglobals // static taxonomy
var UrgencyOptions = []string{
	"Emergency - safety risk or active damage",
	"Urgent - within 24 hours",
	"Soon - within a week",
	"Routine - flexible scheduling",
}

// DefaultDefinitions returns fresh copies of the built-in archetypes.
func DefaultDefinitions() []Definition {
	return []Definition{
		generalDiscovery(),
		financialQualification(),
		serviceRequest(),
		clientOnboarding(),
	}
}

// DefaultBank returns a registry holding the built-in archetypes.
func DefaultBank() *Bank {
	b, err := NewBank(DefaultDefinitions()...)
	if err != nil {
		// The built-ins are covered by tests; failing here is a programming error.
		panic(err)
	}
	return b
}

func generalDiscovery() Definition {
	return Definition{
		Type:        TypeGeneralDiscovery,
		Description: "Short discovery conversation to understand goals, experience and constraints.",
		MaxSteps:    5,
		Questions: []Question{
			{
				ID:       "primary_goal",
				Text:     "What is the main goal you want to accomplish?",
				Type:     QuestionText,
				Required: true,
				Metadata: map[string]string{"category": "goals"},
			},
			{
				ID:       "experience_level",
				Text:     "On a scale of 1 to 5, how experienced are you with this area?",
				Type:     QuestionScale,
				Required: true,
				Options:  []string{"1", "2", "3", "4", "5"},
				Metadata: map[string]string{"category": "background"},
			},
			{
				ID:       "current_challenges",
				Text:     "What challenges are you currently facing?",
				Type:     QuestionText,
				Required: true,
				Metadata: map[string]string{"category": "challenges"},
			},
			{
				ID:       "timeline",
				Text:     "What timeline are you working with?",
				Type:     QuestionText,
				Required: true,
				Metadata: map[string]string{"category": "constraints"},
			},
			{
				ID:       "additional_notes",
				Text:     "Is there anything else we should know?",
				Type:     QuestionText,
				Required: false,
				Metadata: map[string]string{"category": "other"},
			},
		},
		CompletionCriteria: []CompletionCriterion{
			CriterionAllRequiredAnswered,
			CriterionStepLimitReached,
			CriterionUserIndicatedDone,
		},
	}
}

func financialQualification() Definition {
	return Definition{
		Type:        TypeFinancialQualification,
		Description: "Rental applicant financial qualification.",
		MaxSteps:    8,
		Questions: []Question{
			{
				ID:       "employment_status",
				Text:     "What is your current employment status?",
				Type:     QuestionMultipleChoice,
				Required: true,
				Options: []string{
					"Employed full-time",
					"Employed part-time",
					"Self-employed",
					"Unemployed",
					"Retired",
					"Student",
				},
				Metadata: map[string]string{"category": "employment"},
			},
			{
				ID:       "monthly_income",
				Text:     "What is your gross monthly income in dollars?",
				Type:     QuestionNumber,
				Required: true,
				Metadata: map[string]string{"category": "income"},
			},
			{
				ID:       "employer_name",
				Text:     "Who is your current employer (or your business name)?",
				Type:     QuestionText,
				Required: true,
				Metadata: map[string]string{"category": "employment"},
			},
			{
				ID:       "employment_length_months",
				Text:     "How many months have you been with your current employer?",
				Type:     QuestionNumber,
				Required: true,
				Metadata: map[string]string{"category": "employment"},
			},
			{
				ID:       "rental_history",
				Text:     "Have you rented before? Tell us briefly about your rental history, or say \"first time\".",
				Type:     QuestionText,
				Required: true,
				Metadata: map[string]string{"category": "history"},
			},
			{
				ID:       "credit_check_consent",
				Text:     "Do you consent to a credit check?",
				Type:     QuestionYesNo,
				Required: true,
				Metadata: map[string]string{"category": "consent"},
			},
			{
				ID:       "move_in_date",
				Text:     "When would you like to move in?",
				Type:     QuestionDate,
				Required: true,
				Metadata: map[string]string{"category": "logistics"},
			},
			{
				ID:       "household_size",
				Text:     "How many people will live in the unit?",
				Type:     QuestionNumber,
				Required: true,
				Metadata: map[string]string{"category": "logistics"},
			},
		},
		CompletionCriteria: []CompletionCriterion{
			CriterionAllRequiredAnswered,
			CriterionStepLimitReached,
		},
	}
}

func serviceRequest() Definition {
	return Definition{
		Type:        TypeServiceRequest,
		Description: "Maintenance or service request intake.",
		MaxSteps:    7,
		Questions: []Question{
			{
				ID:       "service_category",
				Text:     "What kind of issue are you reporting?",
				Type:     QuestionMultipleChoice,
				Required: true,
				Options:  []string{"Plumbing", "Electrical", "HVAC", "Appliance", "Structural", "Pest Control", "Other"},
				Metadata: map[string]string{"category": "classification"},
			},
			{
				ID:       "issue_description",
				Text:     "Please describe the issue.",
				Type:     QuestionText,
				Required: true,
				Metadata: map[string]string{"category": "details"},
			},
			{
				ID:       "urgency",
				Text:     "How urgent is this?",
				Type:     QuestionMultipleChoice,
				Required: true,
				Options:  append([]string(nil), UrgencyOptions...),
				Metadata: map[string]string{"category": "urgency"},
			},
			{
				ID:       "location_in_unit",
				Text:     "Where in the unit is the issue located?",
				Type:     QuestionText,
				Required: true,
				Metadata: map[string]string{"category": "details"},
			},
			{
				ID:       "access_permission",
				Text:     "May a technician enter if you are not home?",
				Type:     QuestionYesNo,
				Required: true,
				Metadata: map[string]string{"category": "access"},
			},
			{
				ID:       "preferred_contact_time",
				Text:     "When is the best time to contact you?",
				Type:     QuestionMultipleChoice,
				Required: true,
				Options:  []string{"Morning", "Afternoon", "Evening", "Anytime"},
				Metadata: map[string]string{"category": "access"},
			},
			{
				ID:       "photos",
				Text:     "Optionally, share links to photos of the issue.",
				Type:     QuestionText,
				Required: false,
				Metadata: map[string]string{"category": "details"},
			},
		},
		CompletionCriteria: []CompletionCriterion{
			CriterionAllRequiredAnswered,
			CriterionStepLimitReached,
			CriterionTimeout,
		},
		SessionTimeout: 72 * time.Hour,
	}
}

func clientOnboarding() Definition {
	return Definition{
		Type:        TypeClientOnboarding,
		Description: "New client onboarding.",
		MaxSteps:    6,
		Questions: []Question{
			{
				ID:       "company_name",
				Text:     "What is the name of your company?",
				Type:     QuestionText,
				Required: true,
				Metadata: map[string]string{"category": "profile"},
			},
			{
				ID:       "company_size",
				Text:     "How large is your team?",
				Type:     QuestionMultipleChoice,
				Required: true,
				Options:  []string{"Just me", "2-10", "11-50", "51-200", "200+"},
				Metadata: map[string]string{"category": "profile"},
			},
			{
				ID:       "acquisition_source",
				Text:     "How did you hear about us?",
				Type:     QuestionMultipleChoice,
				Required: true,
				Options:  []string{"Search engine", "Social media", "Referral", "Advertisement", "Event", "Other"},
				Metadata: map[string]string{"category": "marketing"},
			},
			{
				ID:       "features_of_interest",
				Text:     "Which features are you most interested in?",
				Type:     QuestionMultipleSelect,
				Required: true,
				Options:  []string{"Reporting", "Automation", "Integrations", "Team collaboration", "Billing", "Support"},
				Metadata: map[string]string{"category": "needs"},
			},
			{
				ID:       "budget_range",
				Text:     "What is your monthly budget?",
				Type:     QuestionMultipleChoice,
				Required: true,
				Options:  []string{"Under $100", "$100-$500", "$500-$2000", "Over $2000"},
				Metadata: map[string]string{"category": "budget"},
			},
			{
				ID:       "additional_requirements",
				Text:     "Any other requirements we should plan for?",
				Type:     QuestionText,
				Required: false,
				Metadata: map[string]string{"category": "needs"},
			},
		},
		CompletionCriteria: []CompletionCriterion{
			CriterionAllRequiredAnswered,
			CriterionStepLimitReached,
		},
	}
}
