package reporting

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

const junitSuiteName = "regprobe"

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// RenderJUnit writes the run as a JUnit XML document with one testcase per case.
func RenderJUnit(w io.Writer, run recorder.RunRecord) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", junitSuiteName)
	suites.CreateAttr("tests", strconv.Itoa(run.Totals.Total))
	suites.CreateAttr("failures", strconv.Itoa(run.Totals.Failed))
	suites.CreateAttr("time", seconds(run.Duration()))

	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", junitSuiteName)
	suite.CreateAttr("id", run.ID)
	suite.CreateAttr("tests", strconv.Itoa(run.Totals.Total))
	suite.CreateAttr("failures", strconv.Itoa(run.Totals.Failed))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("timestamp", run.Start.UTC().Format(time.RFC3339))
	suite.CreateAttr("time", seconds(run.Duration()))

	props := suite.CreateElement("properties")
	for _, kv := range [][2]string{
		{"base_url", run.Metadata.BaseURL},
		{"headless", strconv.FormatBool(run.Metadata.Headless)},
		{"ci", strconv.FormatBool(run.Metadata.CI)},
	} {
		p := props.CreateElement("property")
		p.CreateAttr("name", kv[0])
		p.CreateAttr("value", kv[1])
	}

	for _, c := range run.Cases {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", junitSuiteName)
		tc.CreateAttr("name", c.Name)
		tc.CreateAttr("time", seconds(c.Duration()))
		if c.Status == recorder.StatusFailed {
			failure := tc.CreateElement("failure")
			failure.CreateAttr("message", c.Error)
			failure.CreateAttr("type", "CaseFailed")
			failure.SetText(failedSteps(c))
		}
		var out string
		for _, s := range c.Steps {
			out += fmt.Sprintf("%s: %s\n", s.Name, s.Status)
		}
		if out != "" {
			tc.CreateElement("system-out").SetText(out)
		}
		if c.Screenshot != "" {
			att := tc.CreateElement("system-err")
			att.SetText("[[ATTACHMENT|" + c.Screenshot + "]]")
		}
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("render junit report: %w", err)
	}
	return nil
}

func failedSteps(c recorder.CaseResult) string {
	var text string
	for _, s := range c.Steps {
		if s.Status == recorder.StatusFailed {
			text += fmt.Sprintf("%s: %s\n", s.Name, s.Error)
		}
	}
	if text == "" {
		return c.Error
	}
	return text
}
