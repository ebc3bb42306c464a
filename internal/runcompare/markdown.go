package runcompare

import (
	"fmt"
	"path/filepath"
	"strings"

	"razor/internal/schema"
)

// WriteRunsSummaryMD writes a Markdown digest of every run into outDir: a
// top-level comparison table, then a per-run section with top reasons
// overall and broken down by liquidity bucket.
func WriteRunsSummaryMD(outDir string, runs []RunSummary) (string, error) {
	path := filepath.Join(outDir, schema.FileRunsSummaryMD)
	var b strings.Builder

	b.WriteString("# Run Comparison\n\n")
	b.WriteString("| run_id | signals | total_pnl_sum | avg_set_ratio | legging_rate | liquid_pnl | thin_pnl |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
	for _, r := range runs {
		liquid := bucketOrZero(r.ByBucket, "liquid")
		thin := bucketOrZero(r.ByBucket, "thin")
		fmt.Fprintf(&b, "| %s | %d | %.6f | %.6f | %.6f | %.6f | %.6f |\n",
			r.RunID, r.Signals, r.TotalPnlSum, r.AvgSetRatio, r.LeggingRate, liquid.PnlSum, thin.PnlSum)
	}
	b.WriteString("\n")

	for _, r := range runs {
		fmt.Fprintf(&b, "## Run `%s`\n\n", r.RunID)
		fmt.Fprintf(&b, "- run_dir: `%s`\n", r.RunDir)
		fmt.Fprintf(&b, "- totals: signals=%d, total_pnl_sum=%.6f, pnl_set_sum=%.6f, pnl_left_total_sum=%.6f, avg_set_ratio=%.6f, legging_rate=%.6f\n\n",
			r.Signals, r.TotalPnlSum, r.PnlSetSum, r.PnlLeftTotalSum, r.AvgSetRatio, r.LeggingRate)

		b.WriteString("### Top Reasons (global)\n\n")
		writeReasonTable(&b, r.ByReason, 5)

		b.WriteString("### Top Reasons by Bucket\n\n")
		for _, bucket := range []string{"liquid", "thin", "unknown"} {
			fmt.Fprintf(&b, "#### bucket=%s\n\n", bucket)
			agg := make(map[string]*ReasonAgg)
			for key, v := range r.ByBucketReason {
				if key.bucket != bucket {
					continue
				}
				agg[key.reason] = v
			}
			writeReasonTable(&b, agg, 5)
		}
	}

	if err := schema.WriteTextAtomic(path, b.String()); err != nil {
		return "", err
	}
	return path, nil
}

func writeReasonTable(b *strings.Builder, agg map[string]*ReasonAgg, n int) {
	b.WriteString("| reason | count | sum_pnl |\n")
	b.WriteString("|---|---:|---:|\n")
	for _, rr := range topReasons(agg, n) {
		fmt.Fprintf(b, "| %s | %d | %.6f |\n", rr.reason, rr.agg.Count, rr.agg.SumPnl)
	}
	b.WriteString("\n")
}
