package testkit

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/router"
)

// ConfigEntry is one endpoint in a suite's master file. Each entry mounts
// a single handler on a fresh router and runs an array of scenarios
// against it.
type ConfigEntry struct {
	ServiceName       string `json:"serviceName"`
	FilePath          string `json:"filePath"`
	ScenariosFileName string `json:"scenariosFileName"`
	ServiceURL        string `json:"serviceUrl"`
	HTTPMethodType    string `json:"httpMethodType"`

	// WorkflowService is the key of the handler in the map given to RunSuite.
	WorkflowService string `json:"workflowService"`
}

// RunSuite runs every entry of the master config at masterConfigPath.
// Scenarios in an entry share one session, so captures carry over.
func RunSuite(t *testing.T, masterConfigPath string, handlers map[string]http.HandlerFunc) {
	t.Helper()

	absMasterPath, err := filepath.Abs(masterConfigPath)
	if err != nil {
		t.Fatalf("testkit: resolve master config path %q: %v", masterConfigPath, err)
	}
	data, err := os.ReadFile(absMasterPath)
	if err != nil {
		t.Fatalf("testkit: read master config %q: %v", absMasterPath, err)
	}

	var entries []ConfigEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("testkit: parse master config %q: %v", absMasterPath, err)
	}

	baseDir := filepath.Dir(absMasterPath)
	for _, entry := range entries {
		t.Run(entry.ServiceName, func(t *testing.T) {
			handler, ok := handlers[entry.WorkflowService]
			if !ok {
				t.Fatalf("testkit: handler %q not found in provided map", entry.WorkflowService)
			}

			url := entry.ServiceURL
			if !strings.HasPrefix(url, "/") {
				url = "/" + url
			}
			r := router.New()
			g := r.Group("")
			switch strings.ToUpper(entry.HTTPMethodType) {
			case http.MethodPost:
				g.Post(url, entry.WorkflowService, handler)
			case http.MethodPut:
				g.Put(url, entry.WorkflowService, handler)
			case http.MethodPatch:
				g.Patch(url, entry.WorkflowService, handler)
			case http.MethodDelete:
				g.Delete(url, entry.WorkflowService, handler)
			default:
				g.Get(url, entry.WorkflowService, handler)
			}

			// filePath is relative to the master file, or failing that to
			// the working directory.
			scenarioPath := filepath.Join(baseDir, entry.FilePath, entry.ScenariosFileName)
			if _, err := os.Stat(scenarioPath); os.IsNotExist(err) {
				scenarioPath = filepath.Join(entry.FilePath, entry.ScenariosFileName)
			}

			scenarios, err := LoadScenarioArray(scenarioPath)
			if err != nil {
				t.Fatalf("testkit: load scenario array %q: %v", scenarioPath, err)
			}

			sess := NewSession(r.Handler())
			for _, s := range scenarios {
				if s.RequestURL == "" {
					s.RequestURL = url
				}
				if s.RequestMethod == "" {
					s.RequestMethod = entry.HTTPMethodType
				}
				t.Run(s.Name, func(t *testing.T) {
					sess.runScenario(t, s)
				})
			}
		})
	}
}
