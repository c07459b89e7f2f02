package deployments

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	text := readAsset(t, "observability", "prometheus", "recruitsql_rules.yaml")

	requiredAlerts := []string{
		"RecruitSQLPipelineLatencyP95High",
		"RecruitSQLModelLockContention",
		"RecruitSQLPipelineFailureRatioHigh",
		"RecruitSQLUnsafeQueriesDetected",
		"RecruitSQLTimeoutsDetected",
		"RecruitSQLHTTPErrorRateHigh",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}

	records := readAsset(t, "observability", "prometheus", "recruitsql_recording_rules.yaml")
	for _, match := range regexp.MustCompile(`recruitsql:[a-z0-9_]+`).FindAllString(text, -1) {
		if !strings.Contains(records, "record: "+match) {
			t.Fatalf("alert references %q but no recording rule defines it", match)
		}
	}
}

func TestRecordingRulesReferenceRegisteredMetrics(t *testing.T) {
	records := readAsset(t, "observability", "prometheus", "recruitsql_recording_rules.yaml")

	var source strings.Builder
	for _, name := range []string{"metrics.go", "domain_metrics.go"} {
		source.WriteString(readFile(t, filepath.Join(repoRoot(t), "internal", "observability", name)))
	}

	suffixes := regexp.MustCompile(`_(bucket|sum|count)$`)
	for _, metric := range regexp.MustCompile(`\brecruitsql_[a-z0-9_]+`).FindAllString(records, -1) {
		base := suffixes.ReplaceAllString(metric, "")
		if !strings.Contains(source.String(), `"`+base+`"`) {
			t.Fatalf("recording rules reference %q which is not registered", metric)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	text := readAsset(t, "observability", "prometheus", "prometheus-scrape.example.yaml")

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"recruitsql_rules.yaml",
		"recruitsql_recording_rules.yaml",
		"job_name: recruitsql-api",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func TestAlertmanagerExampleContainsSeverityRouting(t *testing.T) {
	text := readAsset(t, "observability", "alertmanager", "alertmanager.example.yaml")

	requiredTokens := []string{
		"receiver: recruitsql-default",
		"severity=\"critical\"",
		"severity=\"warning\"",
		"name: recruitsql-critical",
		"name: recruitsql-warning",
		"inhibit_rules:",
		"group_by: [alertname, service, severity]",
	}
	for _, token := range requiredTokens {
		if !strings.Contains(text, token) {
			t.Fatalf("alertmanager example missing token %q", token)
		}
	}
}

func TestComposeStackWiresBackingServices(t *testing.T) {
	text := readAsset(t, "docker-compose.yml")

	for _, token := range []string{
		"image: mysql:",
		"image: redis:",
		"image: minio/minio:",
		"MYSQL_HOST: mysql:3306",
		"RECRUITSQL_CACHE_ADDR: redis:6379",
		"RECRUITSQL_OBJECTSTORE_ENDPOINT: http://minio:9000",
		"condition: service_completed_successfully",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("compose file missing %q", token)
		}
	}
}

func readAsset(t *testing.T, parts ...string) string {
	t.Helper()
	return readFile(t, filepath.Join(append([]string{repoRoot(t), "deployments"}, parts...)...))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
