package extraction

import (
	"encoding/json"
	"strings"

	"calldesk/internal/services"
)

// Appointment is the structured payload extracted from one transcript. JSON
// tags match the schema the collaborator is instructed to produce.
type Appointment struct {
	HasAppointment    bool    `json:"has_appointment"`
	CustomerName      string  `json:"customer_name"`
	CustomerPhone     string  `json:"customer_phone"`
	CustomerEmail     string  `json:"customer_email"`
	ServiceType       string  `json:"service_type"`
	Description       string  `json:"description"`
	Urgency           string  `json:"urgency"`
	PreferredDate     string  `json:"preferred_date"`
	PreferredTime     string  `json:"preferred_time"`
	Flexibility       string  `json:"flexibility"`
	Address           string  `json:"address"`
	AddressConfidence float64 `json:"address_confidence"`
	QuotedPrice       float64 `json:"quoted_price"`
	BudgetMentioned   bool    `json:"budget_mentioned"`
	PricingNote       string  `json:"pricing_note"`
	Confidence        float64 `json:"confidence"`
	Issues            []string
}

// rawPayload uses pointers for the two fields whose absence means the
// collaborator ignored the schema rather than extracted nothing.
type rawPayload struct {
	HasAppointment    *bool    `json:"has_appointment"`
	CustomerName      string   `json:"customer_name"`
	CustomerPhone     string   `json:"customer_phone"`
	CustomerEmail     string   `json:"customer_email"`
	ServiceType       string   `json:"service_type"`
	Description       string   `json:"description"`
	Urgency           string   `json:"urgency"`
	PreferredDate     string   `json:"preferred_date"`
	PreferredTime     string   `json:"preferred_time"`
	Flexibility       string   `json:"flexibility"`
	Address           string   `json:"address"`
	AddressConfidence float64  `json:"address_confidence"`
	QuotedPrice       float64  `json:"quoted_price"`
	BudgetMentioned   bool     `json:"budget_mentioned"`
	PricingNote       string   `json:"pricing_note"`
	Confidence        *float64 `json:"confidence"`
}

const systemPrompt = `You analyze phone call transcripts for a home-services business.
Extract appointment details and respond with ONLY a JSON object, no prose, matching:

{
  "has_appointment": bool,        // does the caller want work scheduled or quoted?
  "customer_name": string,
  "customer_phone": string,
  "customer_email": string,
  "service_type": string,         // e.g. "plumbing repair", "hvac maintenance"
  "description": string,          // what the caller needs, in one or two sentences
  "urgency": string,              // one of: low, normal, high, emergency
  "preferred_date": string,       // verbatim phrase, e.g. "next Tuesday"
  "preferred_time": string,
  "flexibility": string,
  "address": string,
  "address_confidence": number,   // 0.0 to 1.0
  "quoted_price": number,         // 0 when no price was discussed
  "budget_mentioned": bool,
  "pricing_note": string,
  "confidence": number            // 0.0 to 1.0, overall extraction confidence
}

Leave string fields empty when the transcript does not state them. Never invent details.`

// parsePayload decodes the collaborator's response, tolerating markdown code
// fences and surrounding prose around the JSON object.
func parsePayload(response string) (*rawPayload, error) {
	body := extractJSON(response)
	if body == "" {
		return nil, services.Wrap(services.ErrExternalService, "extract", "parse",
			"no JSON object in collaborator response", nil)
	}

	var payload rawPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "extract", "parse",
			"malformed collaborator JSON", err)
	}
	if payload.HasAppointment == nil || payload.Confidence == nil {
		return nil, services.Wrap(services.ErrExternalService, "extract", "parse",
			"collaborator response missing has_appointment or confidence", nil)
	}
	return &payload, nil
}

func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	if after, ok := strings.CutPrefix(response, "```json"); ok {
		response = after
	} else if after, ok := strings.CutPrefix(response, "```"); ok {
		response = after
	}
	response = strings.TrimSuffix(strings.TrimSpace(response), "```")

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return ""
	}
	return response[start : end+1]
}
