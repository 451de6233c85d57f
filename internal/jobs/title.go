package jobs

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// generateTitle builds a short work-order title from what the extraction
// offered. "plumbing repair" + "john smith" becomes
// "Plumbing Repair - John Smith".
func generateTitle(serviceType, customerName string) string {
	serviceType = strings.TrimSpace(serviceType)
	customerName = strings.TrimSpace(customerName)

	switch {
	case serviceType != "" && customerName != "":
		return titleCaser.String(serviceType) + " - " + titleCaser.String(customerName)
	case serviceType != "":
		return titleCaser.String(serviceType)
	case customerName != "":
		return "Service Call - " + titleCaser.String(customerName)
	default:
		return "Service Call"
	}
}
