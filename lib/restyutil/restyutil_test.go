package restyutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mutex    sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(name, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.messages[name] = contents
}

func TestDumpResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-served-by", "test")
		w.Write([]byte("hello " + r.URL.Query().Get("name")))
	}))
	defer server.Close()

	output := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	DumpResponses(client, output, func(res *resty.Response) string {
		return res.Request.QueryParam.Get("name")
	})

	_, err := client.R().SetQueryParam("name", "alice").Get(server.URL)
	require.NoError(t, err)
	_, err = client.R().SetQueryParam("name", "bob").Get(server.URL)
	require.NoError(t, err)

	require.Len(t, output.messages, 2)
	require.Contains(t, output.messages, "1-alice.txt")
	require.Contains(t, output.messages, "2-bob.txt")

	message := output.messages["2-bob.txt"]
	require.Contains(t, message, "---- REQUEST ----")
	require.Contains(t, message, "GET "+server.URL)
	require.Contains(t, message, "X-Served-By: test")
	require.Contains(t, message, "hello bob")
}

func TestDumpRequestBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer server.Close()

	output := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	DumpResponses(client, output, func(*resty.Response) string { return "form" })

	_, err := client.R().SetBody("term_in=202008").Post(server.URL)
	require.NoError(t, err)
	require.Contains(t, output.messages["1-form.txt"], "POST "+server.URL)
	require.Contains(t, output.messages["1-form.txt"], "term_in=202008")
}

func TestFormatRequestBody(t *testing.T) {
	table := []struct {
		name    string
		getBody func() (io.ReadCloser, error)
	}{
		{name: "no GetBody"},
		{
			name:    "nil body",
			getBody: func() (io.ReadCloser, error) { return nil, nil },
		},
		{
			name:    "no body",
			getBody: func() (io.ReadCloser, error) { return http.NoBody, nil },
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "https://oscar.example.edu/", nil)
			req.GetBody = test.getBody
			require.Equal(t, "", formatRequestBody(req))
		})
	}
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dumps")
	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	output.Write("1-page.txt", "contents")
	written, err := os.ReadFile(filepath.Join(dir, "1-page.txt"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(written))
}
