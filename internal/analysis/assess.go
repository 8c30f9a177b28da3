package analysis

import (
	"fmt"
	"strings"

	"github.com/jonathan/person-intel/internal/types"
)

// Assessment is the deterministic risk verdict for a report.
type Assessment struct {
	RiskLevel     types.RiskLevel
	Confidence    float64
	Justification string
}

// confidenceSaturation controls how quickly record volume pushes confidence
// toward the source-coverage ceiling.
const confidenceSaturation = 4

// Assess derives the risk level, confidence score and justification from the
// evidence already in the report. It is a pure function of the report: running
// it twice on the same evidence yields the same verdict.
func Assess(report *types.PersonIntelligence) Assessment {
	var (
		sanctioned  int
		highRisk    int
		pepRecords  = len(report.PEPRecords)
		negative    int
		profiles    int
		pepFindings []string
	)

	for _, record := range report.PEPRecords {
		if record.Sanctioned() {
			sanctioned++
			pepFindings = append(pepFindings, fmt.Sprintf("%s lists %q with sanctions or watchlist entries", record.Source, record.Name))
		} else if record.RiskLevel.AtLeast(types.RiskHigh) {
			highRisk++
			pepFindings = append(pepFindings, fmt.Sprintf("%s lists %q at %s risk", record.Source, record.Name, record.RiskLevel))
		}
	}
	for _, article := range report.NewsArticles {
		if article.Sentiment.Negative() {
			negative++
		}
	}
	for _, list := range report.SocialProfiles {
		profiles += len(list)
	}

	level, reason := riskLevel(sanctioned, highRisk, pepRecords, negative, report.TotalRecords())

	return Assessment{
		RiskLevel:     level,
		Confidence:    confidence(report),
		Justification: justification(reason, pepFindings, pepRecords, negative, profiles),
	}
}

func riskLevel(sanctioned, highRisk, pepRecords, negative, total int) (types.RiskLevel, string) {
	switch {
	case sanctioned > 0:
		return types.RiskCritical, "subject matches sanctioned or watchlisted registry entries"
	case highRisk > 0:
		return types.RiskHigh, "subject matches high-risk political exposure records"
	case pepRecords > 0 && negative >= 3:
		return types.RiskHigh, "subject has political exposure combined with sustained negative media coverage"
	case pepRecords > 0:
		return types.RiskMedium, "subject matches political exposure records"
	case negative >= 2:
		return types.RiskMedium, "subject has repeated negative media coverage"
	case total > 0:
		return types.RiskLow, "subject has an observable footprint with no adverse indicators"
	default:
		return types.RiskUnknown, "no evidence was collected for the subject"
	}
}

// confidence combines source coverage with evidence volume. No successful
// source means no confidence, regardless of what the cache may have held.
func confidence(report *types.PersonIntelligence) float64 {
	if len(report.SourcesSuccessful) == 0 || len(report.SourcesChecked) == 0 {
		return 0
	}
	coverage := float64(len(report.SourcesSuccessful)) / float64(len(report.SourcesChecked))
	records := float64(report.TotalRecords())
	volume := records / (records + confidenceSaturation)
	return coverage * (0.4 + 0.6*volume)
}

func justification(reason string, pepFindings []string, pepRecords, negative, profiles int) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(reason[:1]))
	b.WriteString(reason[1:])
	b.WriteString(".")

	if len(pepFindings) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(pepFindings, "; "))
		b.WriteString(".")
	} else if pepRecords > 0 {
		fmt.Fprintf(&b, " %d political exposure record(s) matched the subject.", pepRecords)
	}
	if negative > 0 {
		fmt.Fprintf(&b, " %d article(s) carried negative sentiment.", negative)
	}
	if profiles > 0 {
		fmt.Fprintf(&b, " %d social profile(s) were matched.", profiles)
	}
	return b.String()
}
