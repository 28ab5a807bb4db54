package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu       sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages[id] = contents
}

func TestInstrumentClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>form</body></html>"))
	}))
	defer server.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	InstrumentClient(client, nil, out)

	res, err := client.R().Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusOK, res.StatusCode())

	require.Len(t, out.messages, 1)
	dump := out.messages["1"]
	require.Contains(t, dump, "GET "+server.URL)
	require.Contains(t, dump, "Content-Type: text/html")
	require.True(t, strings.HasSuffix(dump, "<html><body>form</body></html>"))
}

func TestFilesystemOutput(t *testing.T) {
	dir := t.TempDir()
	out, err := NewFilesystemOutput(dir)
	if err != nil {
		t.Fatal(err)
	}
	out.Write("7", "contents")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, entries, 1)
	require.True(t, strings.HasSuffix(entries[0].Name(), "-7.txt"))
}
