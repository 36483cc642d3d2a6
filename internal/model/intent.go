package model

// Intent is the closed set of intents the orchestrator routes on.
type Intent int

const (
	IntentUnclear Intent = iota
	IntentActivateVoicemail
	IntentDeactivateVoicemail
	IntentQueryVoicemailInfo
	IntentQueryVoicemailAccess
	IntentQueryPlanInfo
	IntentQuerySIMCard
	IntentQueryBilling
	IntentQueryData
	IntentQueryRoaming
	IntentQueryNetwork
	IntentGeneralInquiry
	IntentCheckVoicemailStatus
	IntentGreeting
	IntentEscalateToAgent
	IntentOutOfScope
	IntentAbusiveLanguage
)

var intentNames = map[Intent]string{
	IntentUnclear:              "unclear_intent",
	IntentActivateVoicemail:    "activate_voicemail",
	IntentDeactivateVoicemail:  "deactivate_voicemail",
	IntentQueryVoicemailInfo:   "query_voicemail_info",
	IntentQueryVoicemailAccess: "query_voicemail_access",
	IntentQueryPlanInfo:        "query_plan_info",
	IntentQuerySIMCard:         "query_sim_card",
	IntentQueryBilling:         "query_billing",
	IntentQueryData:            "query_data",
	IntentQueryRoaming:         "query_roaming",
	IntentQueryNetwork:         "query_network",
	IntentGeneralInquiry:       "general_inquiry",
	IntentCheckVoicemailStatus: "check_voicemail_status",
	IntentGreeting:             "greeting",
	IntentEscalateToAgent:      "escalate_to_agent",
	IntentOutOfScope:           "out_of_scope",
	IntentAbusiveLanguage:      "abusive_language",
}

var intentsByName = func() map[string]Intent {
	m := make(map[string]Intent, len(intentNames))
	for i, name := range intentNames {
		m[name] = i
	}
	return m
}()

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return intentNames[IntentUnclear]
}

// ParseIntent maps a wire intent name to an Intent. Unknown names map to
// IntentUnclear.
func ParseIntent(name string) Intent {
	if i, ok := intentsByName[name]; ok {
		return i
	}
	return IntentUnclear
}

// IntentNames lists every known wire name.
func IntentNames() []string {
	names := make([]string, 0, len(intentNames))
	for i := IntentUnclear; i <= IntentAbusiveLanguage; i++ {
		names = append(names, intentNames[i])
	}
	return names
}

// Category groups intents by how the orchestrator handles them.
type Category int

const (
	CategoryUnclear Category = iota
	CategorySensitive
	CategoryInformational
	CategoryStatus
	CategoryGreeting
	CategoryEscalation
	CategoryAbusive
)

// Category returns the routing category of the intent.
func (i Intent) Category() Category {
	switch i {
	case IntentActivateVoicemail, IntentDeactivateVoicemail:
		return CategorySensitive
	case IntentQueryVoicemailInfo, IntentQueryVoicemailAccess, IntentQueryPlanInfo,
		IntentQuerySIMCard, IntentQueryBilling, IntentQueryData, IntentQueryRoaming,
		IntentQueryNetwork, IntentGeneralInquiry:
		return CategoryInformational
	case IntentCheckVoicemailStatus:
		return CategoryStatus
	case IntentGreeting:
		return CategoryGreeting
	case IntentEscalateToAgent, IntentOutOfScope:
		return CategoryEscalation
	case IntentAbusiveLanguage:
		return CategoryAbusive
	default:
		return CategoryUnclear
	}
}

// Slots are the entities extracted alongside an intent.
type Slots struct {
	PhoneNumber string
	SecurityPIN string
	Language    Language
}

// Classification is the result of intent classification.
type Classification struct {
	Intent     Intent
	Confidence float64
	Slots      Slots
	// NormalizedMessage is the slang-normalized input, when available.
	NormalizedMessage string
}

// UnclearClassification is returned when classification fails.
func UnclearClassification() Classification {
	return Classification{Intent: IntentUnclear, Confidence: 0, Slots: Slots{Language: LanguageEN}}
}
