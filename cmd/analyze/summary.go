package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/services"
)

const ruleWidth = 80

var usd = message.NewPrinter(language.AmericanEnglish)

func money(v float64) string {
	if v < 0 {
		return usd.Sprintf("-$%.2f", -v)
	}
	return usd.Sprintf("$%.2f", v)
}

func printHeader(w io.Writer, title string) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(w, rule)
	pad := (ruleWidth - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintln(w, strings.Repeat(" ", pad)+title)
	fmt.Fprintln(w, rule)
}

// printSummary writes the executive summary for one analysis.
func printSummary(w io.Writer, r *models.AnalysisResult) models.Decision {
	d := services.Decide(r)

	fmt.Fprintln(w)
	printHeader(w, "EXECUTIVE SUMMARY")
	fmt.Fprintf(w, "\nDECISION: %s - %s\n", d.Decision, d.Reason)

	fmt.Fprintln(w, "\nDetails:")
	fmt.Fprintf(w, "  Rating:          %s\n", d.Rating)
	fmt.Fprintf(w, "  Confidence:      %d%%\n", d.Confidence)
	fmt.Fprintf(w, "  Load Type:       %s\n", d.LoadType)
	fmt.Fprintf(w, "  Proposed Margin: %.1f%%\n", d.ProposedMargin)
	if d.MarginWarning {
		fmt.Fprintln(w, "  WARNING: proposed margin is below the minimum")
	}

	if nr := r.NegotiationRange; nr != nil {
		fmt.Fprintln(w, "\n"+strings.Repeat("-", ruleWidth))
		fmt.Fprintln(w, "NEGOTIATION RANGE (carrier buy)")
		fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
		fmt.Fprintf(w, "  Target Rate:              %s\n", money(nr.TargetRate))
		fmt.Fprintf(w, "  Carrier Cost (midpoint):  %s\n", money(nr.Midpoint()))
		fmt.Fprintf(w, "  Max Buy:                  %s\n", money(nr.MaxBuy))
		fmt.Fprintf(w, "  Range spread:             %s\n", money(nr.MaxBuy-nr.TargetRate))
	}

	fmt.Fprintln(w, "\nRECOMMENDED ACTION:")
	switch d.PriceAction {
	case models.PriceActionIncrease:
		fmt.Fprintf(w, "  Increase price to %s (+%s)\n", money(d.SuggestedPrice), money(d.PriceDelta))
	case models.PriceActionReduce:
		fmt.Fprintf(w, "  Reduce price to %s (-%s)\n", money(d.SuggestedPrice), money(math.Abs(d.PriceDelta)))
	case models.PriceActionKeep:
		fmt.Fprintf(w, "  Price appears reasonable at %s\n", money(r.Inputs.ProposedPrice))
	default:
		fmt.Fprintln(w, "  Insufficient data for a reliable price suggestion")
		fmt.Fprintln(w, "  Suggested actions:")
		for _, n := range d.Notes {
			fmt.Fprintf(w, "    - %s\n", n)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	return d
}
