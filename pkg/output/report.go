package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/sdejongh/toolbelt/pkg/models"
)

// Problems report formats
const (
	ReportHuman    = "human"
	ReportJSON     = "json"
	ReportMarkdown = "markdown"
)

// ReportFormats lists the supported problems report formats
var ReportFormats = []string{ReportHuman, ReportJSON, ReportMarkdown}

// problemOrder is the section order of grouped reports
var problemOrder = []models.Status{
	models.StatusError,
	models.StatusDiffers,
	models.StatusNotInReference,
}

var problemTitles = map[models.Status]string{
	models.StatusError:          "Errors",
	models.StatusDiffers:        "Content Differs",
	models.StatusNotInReference: "Not in New Directory",
}

// WriteProblemsReport writes every kept file of a run to path.
// No file is created when the run has no problems.
func WriteProblemsReport(summary *models.Summary, path string, format string) error {
	switch format {
	case ReportHuman, ReportJSON, ReportMarkdown, "":
	default:
		return &models.ValidationError{Field: "report-format", Message: "unknown format: " + format}
	}
	if len(summary.Problems) == 0 {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create problems report: %w", err)
	}
	defer file.Close()

	switch format {
	case ReportJSON:
		err = writeProblemsJSON(summary, file)
	case ReportMarkdown:
		err = writeProblemsMarkdown(summary, file)
	default:
		err = writeProblemsHuman(summary, file)
	}
	if err != nil {
		return fmt.Errorf("failed to write problems report: %w", err)
	}
	return nil
}

// groupProblems splits problems by status, keeping arrival order inside each group
func groupProblems(problems []models.Outcome) map[models.Status][]models.Outcome {
	groups := make(map[models.Status][]models.Outcome)
	for _, p := range problems {
		groups[p.Status] = append(groups[p.Status], p)
	}
	return groups
}

func problemDetail(p models.Outcome) string {
	if p.Error != "" {
		return p.Error
	}
	return p.Reason
}

func writeProblemsHuman(summary *models.Summary, w io.Writer) error {
	fmt.Fprintf(w, "Problems Report\n")
	fmt.Fprintf(w, "===============\n\n")
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Run: %s\n", summary.RunID)
	fmt.Fprintf(w, "Old: %s\n", summary.SourceRoot)
	fmt.Fprintf(w, "New: %s\n", summary.ReferenceRoot)
	fmt.Fprintf(w, "Dry Run: %v\n\n", summary.DryRun)
	fmt.Fprintf(w, "Total Problems: %d\n\n", len(summary.Problems))

	groups := groupProblems(summary.Problems)
	for _, status := range problemOrder {
		items := groups[status]
		if len(items) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d files)", problemTitles[status], len(items))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))
		for _, p := range items {
			fmt.Fprintf(w, "  %s\n", p.RelativePath)
			if detail := problemDetail(p); detail != "" {
				fmt.Fprintf(w, "    Details: %s\n", detail)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeProblemsJSON(summary *models.Summary, w io.Writer) error {
	report := NewJSONReport(summary)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		RunID     string        `json:"run_id"`
		Generated string        `json:"generated"`
		OldDir    string        `json:"old_dir"`
		NewDir    string        `json:"new_dir"`
		DryRun    bool          `json:"dry_run"`
		Total     int           `json:"total_problems"`
		Problems  []JSONProblem `json:"problems"`
	}{
		RunID:     report.RunID,
		Generated: time.Now().Format(time.RFC3339),
		OldDir:    report.SourceRoot,
		NewDir:    report.ReferenceRoot,
		DryRun:    summary.DryRun,
		Total:     len(report.Problems),
		Problems:  report.Problems,
	})
}

func writeProblemsMarkdown(summary *models.Summary, w io.Writer) error {
	md := markdown.NewMarkdown(w)

	md.H1("Problems Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + summary.RunID + "`"},
			{"Old", "`" + summary.SourceRoot + "`"},
			{"New", "`" + summary.ReferenceRoot + "`"},
			{"Dry Run", strconv.FormatBool(summary.DryRun)},
			{"Files", strconv.Itoa(summary.Total)},
			{"Problems", strconv.Itoa(len(summary.Problems))},
		},
	})
	md.PlainText("")

	groups := groupProblems(summary.Problems)
	writeProblemsChart(md, groups)

	if n := len(groups[models.StatusError]); n > 0 {
		md.Warningf("%d file(s) could not be compared or removed.", n)
		md.PlainText("")
	}

	for _, status := range problemOrder {
		items := groups[status]
		if len(items) == 0 {
			continue
		}
		md.H2(fmt.Sprintf("%s (%d)", problemTitles[status], len(items)))
		md.PlainText("")

		rows := make([][]string, 0, len(items))
		for _, p := range items {
			rows = append(rows, []string{"`" + p.RelativePath + "`", problemDetail(p)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Path", "Details"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return md.Build()
}

// writeProblemsChart adds a mermaid pie chart of problem kinds
func writeProblemsChart(md *markdown.Markdown, groups map[models.Status][]models.Outcome) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Problems by kind"),
		piechart.WithShowData(true),
	)
	for _, status := range problemOrder {
		if n := len(groups[status]); n > 0 {
			chart.LabelAndIntValue(problemTitles[status], uint64(n))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}
