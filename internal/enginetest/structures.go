package enginetest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
	"github.com/tfharrelson/md-flow/pkg/mdflow/settings"
	"github.com/tfharrelson/md-flow/pkg/mdflow/stage"
	"github.com/tfharrelson/md-flow/pkg/mdflow/structure"
)

// KnownID is the identifier every fake structure source knows.
const KnownID = "P00250"

// PDB is a small structure with the first residues of KnownID.
const PDB = `HEADER    PLANT PROTEIN                           01-JUN-22
ATOM      1  N   MET A   1     -21.052   4.519  14.116  1.00 39.16           N
ATOM      2  CA  MET A   1     -20.216   5.588  13.557  1.00 39.16           C
ATOM      3  C   MET A   1     -19.016   4.982  12.834  1.00 39.16           C
ATOM      4  O   MET A   1     -18.958   3.771  12.613  1.00 39.16           O
ATOM      5  N   ALA A   2     -18.049   5.841  12.452  1.00 45.12           N
ATOM      6  CA  ALA A   2     -16.834   5.379  11.772  1.00 45.12           C
ATOM      7  C   ALA A   2     -15.709   6.398  11.946  1.00 45.12           C
ATOM      8  O   ALA A   2     -15.961   7.589  12.141  1.00 45.12           O
TER       9      ALA A   2
END
`

// Structures is a fake structure.Fetcher serving structures by identifier.
type Structures map[string]string

func (s Structures) Fetch(_ context.Context, id string) (string, error) {
	pdb, ok := s[id]
	if !ok {
		return "", &structure.StructureNotFoundError{ID: id, Reason: "no prediction"}
	}

	return pdb, nil
}

// DefaultStructures serves PDB for KnownID.
func DefaultStructures() Structures {
	return Structures{KnownID: PDB}
}

// NewStructureServer starts an HTTP server answering like the AlphaFold API under /api for the
// given structures. The server is closed when the test ends.
func NewStructureServer(tb testing.TB, structures Structures) *httptest.Server {
	tb.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/prediction/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/prediction/")
		if _, ok := structures[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Entry not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{{
			"entryId": "AF-" + id + "-F1",
			"pdbUrl":  srv.URL + "/files/AF-" + id + "-F1-model_v4.pdb",
		}})
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/files/AF-")
		id, _, _ := strings.Cut(name, "-F1")
		pdb, ok := structures[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(pdb))
	})
	srv = httptest.NewServer(mux)
	tb.Cleanup(srv.Close)

	return srv
}

// NewEnv returns a stage.Env over eng, working in a temporary directory with the bundled
// templates installed in another one and serving DefaultStructures.
func NewEnv(tb testing.TB, eng engine.Engine, opts ...stage.EnvOption) *stage.Env {
	tb.Helper()

	templates := tb.TempDir()
	require.NoError(tb, settings.InstallBundled(templates))
	resolver, err := settings.NewResolver(templates)
	require.NoError(tb, err)

	opts = append([]stage.EnvOption{stage.WithStructures(DefaultStructures())}, opts...)
	env, err := stage.NewEnv(tb.TempDir(), eng, resolver, opts...)
	require.NoError(tb, err)

	return env
}
