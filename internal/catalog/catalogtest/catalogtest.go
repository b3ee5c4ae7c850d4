// Package catalogtest serves recorded detailed-schedule pages for tests.
package catalogtest

import (
	"embed"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

//go:embed pages/*.html
var pages embed.FS

// Fixture returns the contents of pages/<name>.html.
func Fixture(name string) []byte {
	contents, err := pages.ReadFile(fmt.Sprintf("pages/%s.html", name))
	if err != nil {
		panic(err)
	}
	return contents
}

// Response is one scripted reply of the Server.
type Response struct {
	// Fixture is the name of the page to reply with.
	Fixture string
	// Drop closes the connection without replying.
	Drop bool
}

// Page replies with a fixture.
func Page(name string) Response {
	return Response{Fixture: name}
}

// Dropped closes the connection.
func Dropped() Response {
	return Response{Drop: true}
}

// Server replies to `?crn_in=<id>` requests with scripted responses.
//
// Every id has a queue of responses, the last response in a queue is
// repeated forever. Ids without a script get the "notfound" page.
type Server struct {
	*httptest.Server

	mutex  sync.Mutex
	script map[int64][]Response
	hits   map[int64]int
	terms  []string
}

func NewServer(script map[int64][]Response) *Server {
	s := &Server{
		script: script,
		hits:   map[int64]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) next(id int64) Response {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.hits[id]++
	queue, ok := s.script[id]
	if !ok || len(queue) == 0 {
		return Page("notfound")
	}
	res := queue[0]
	if len(queue) > 1 {
		s.script[id] = queue[1:]
	}
	return res
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("crn_in"), 10, 64)
	if err != nil {
		http.Error(w, "bad crn_in", http.StatusBadRequest)
		return
	}
	s.mutex.Lock()
	s.terms = append(s.terms, r.URL.Query().Get("term_in"))
	s.mutex.Unlock()

	res := s.next(id)
	if res.Drop {
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			panic("response writer does not support hijacking")
		}
		conn, _, err := hijacker.Hijack()
		if err != nil {
			panic(err)
		}
		conn.Close()
		return
	}

	w.Header().Set("content-type", "text/html; charset=UTF-8")
	w.Write(Fixture(res.Fixture))
}

// Hits is the number of requests made for `id`.
func (s *Server) Hits(id int64) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.hits[id]
}

// Terms is the term_in param of every request, in order.
func (s *Server) Terms() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}
