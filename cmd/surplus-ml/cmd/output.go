package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/goccy/go-json"

	apiclient "github.com/donaldgifford/surplus-ml/internal/api/client"
	"github.com/donaldgifford/surplus-ml/internal/engine"
	"github.com/donaldgifford/surplus-ml/internal/pricing"
	"github.com/donaldgifford/surplus-ml/internal/recommend"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printSummary(w io.Writer, s *domain.DataSummary) error {
	tw := newTabWriter(w)
	tw.writef("Users:\t%d\n", s.TotalUsers)
	tw.writef("Users with interactions:\t%d\n", s.UsersWithInteractions)
	tw.writef("Interactions:\t%d\n", s.TotalInteractions)
	tw.writef("Products:\t%d\n", s.TotalProducts)
	tw.writef("Listings with prices:\t%d\n", s.ListingsWithPrices)
	tw.writef("Sold listings:\t%d\n", s.SoldListings)

	statuses := make([]string, 0, len(s.ListingsByStatus))
	for st := range s.ListingsByStatus {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		tw.writef("Listings (%s):\t%d\n", st, s.ListingsByStatus[st])
	}
	return tw.finish()
}

func printRunResult(w io.Writer, r *engine.RunResult) error {
	tw := newTabWriter(w)
	tw.writef("Training ID:\t%s\n", r.TrainingID)
	tw.writef("Timestamp:\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if r.ReportPath != "" {
		tw.writef("Report:\t%s\n", r.ReportPath)
	}
	tw.writef("\nMODEL\tRESULT\tSAMPLES\tDETAIL\n")

	if p := r.Models.Price; p != nil {
		if p.Success {
			tw.writef("%s\tsuccess\t%d\tRMSE %.4f, R² %.3f\n",
				engine.PriceModelName, p.TrainingSamples, p.Metrics.RMSE, p.Metrics.R2)
		} else {
			tw.writef("%s\tfailed\t%d\t%s\n", engine.PriceModelName, p.SamplesAvailable, p.Error)
		}
	}
	if rec := r.Models.Recommendation; rec != nil {
		if rec.Success {
			tw.writef("%s\tsuccess\t%d\tprecision@5 %.3f, vocabulary %d\n",
				engine.RecommendationModelName, rec.ProductsTrained, rec.Metrics.PrecisionAt5, rec.VocabularySize)
		} else {
			tw.writef("%s\tfailed\t%d\t%s\n", engine.RecommendationModelName, rec.ProductsAvailable, rec.Error)
		}
	}

	tw.writef("\n%d of %d models trained\n", r.Succeeded(), r.Attempted())
	return tw.finish()
}

func printModels(w io.Writer, m *apiclient.Models) error {
	tw := newTabWriter(w)
	if m.TrainingID != "" {
		tw.writef("Training ID:\t%s\n", m.TrainingID)
	}
	if m.TrainedAt != nil {
		tw.writef("Trained at:\t%s\n", m.TrainedAt.Format("2006-01-02 15:04:05 MST"))
	}
	tw.writef("\nMODEL\tAVAILABLE\tALGORITHM\tSAMPLES\n")
	for _, s := range m.Models {
		algo := s.Algorithm
		if algo == "" {
			algo = "-"
		}
		tw.writef("%s\t%t\t%s\t%d\n", s.Name, s.Available, algo, s.TrainingSamples)
	}
	return tw.finish()
}

func printRecommendation(w io.Writer, r *pricing.Recommendation) error {
	tw := newTabWriter(w)
	tw.writef("Source:\t%s\n", r.Source)
	if r.Error != "" {
		tw.writef("Error:\t%s\n", r.Error)
		return tw.finish()
	}
	tw.writef("Recommended price:\t%.2f\n", r.RecommendedPrice)
	tw.writef("Range:\t%.2f - %.2f\n", r.MinPrice, r.MaxPrice)
	tw.writef("Discount:\t%.1f%%\n", r.DiscountPercentage)
	tw.writef("Days until expiry:\t%d\n", r.DaysUntilExpiry)
	tw.writef("Category:\t%s\n", r.Category)
	tw.writef("Reasoning:\t%s\n", r.Reasoning)
	return tw.finish()
}

func printSimilar(w io.Writer, r *recommend.Response) error {
	tw := newTabWriter(w)
	tw.writef("Source:\t%s\n", r.Source)
	if r.Error != "" {
		tw.writef("Error:\t%s\n", r.Error)
		return tw.finish()
	}
	tw.writef("Personalized:\t%t\n", r.Personalized)
	tw.writef("\nID\tTITLE\tCATEGORY\tSCORE\n")
	for _, p := range r.SimilarProducts {
		tw.writef("%d\t%s\t%s\t%.3f\n", p.ID, p.Title, p.Category, p.SimilarityScore)
	}
	return tw.finish()
}
