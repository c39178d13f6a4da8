// Package report renders fitted models as Markdown and HTML.
package report

import (
	"fmt"
	"strings"

	"metabias/domain/model"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders the fit settings and the posterior summaries.
func Markdown(fit *model.FittedModel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Fit %s\n\n", fit.ID)
	fmt.Fprintf(&b, "Created %s. Bias model **%s** over %d studies.\n\n",
		fit.CreatedAt.Time().Format("2006-01-02 15:04:05 MST"), fit.Regime, fit.Studies())

	b.WriteString("## Settings\n\n")
	b.WriteString("| Setting | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| alpha | %s |\n", formatFloats(fit.Alpha))
	fmt.Fprintf(&b, "| chains | %d |\n", fit.Chains)
	fmt.Fprintf(&b, "| iterations | %d |\n", fit.Iterations)
	fmt.Fprintf(&b, "| warmup | %d |\n", fit.Warmup)
	fmt.Fprintf(&b, "| seed | %d |\n", fit.Seed)
	fmt.Fprintf(&b, "| tau prior | %s |\n", fit.Priors.TauPrior)
	if fit.Priors.Eta0 != nil {
		fmt.Fprintf(&b, "| eta0 | %s |\n", formatFloats(fit.Priors.Eta0))
	}
	fmt.Fprintf(&b, "| data hash | `%s` |\n", fit.DataHash)
	fmt.Fprintf(&b, "| fingerprint | `%s` |\n\n", fit.Fingerprint)

	b.WriteString("## Posterior\n\n")
	b.WriteString("| Parameter | Mean | SD | Median | 2.5% | 97.5% |\n|---|---:|---:|---:|---:|---:|\n")
	for _, s := range fit.Summaries {
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			s.Parameter, s.Mean, s.SD, s.Median, s.Lower, s.Upper)
	}
	if fit.Draws.Len() > 0 {
		fmt.Fprintf(&b, "\n%d posterior draws", fit.Draws.Len())
		if fit.LogLik != nil {
			b.WriteString(", pointwise log-likelihood stored")
		}
		b.WriteString(".\n")
	}
	return b.String()
}

// HTML renders Markdown(fit) as a standalone page.
func HTML(fit *model.FittedModel) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: fmt.Sprintf("Fit %s", fit.ID),
	})
	return markdown.ToHTML([]byte(Markdown(fit)), p, renderer)
}

func formatFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%g", x)
	}
	return strings.Join(parts, ", ")
}
