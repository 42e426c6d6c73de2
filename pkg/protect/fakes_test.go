package protect

import (
	"context"
	"sync"
	"time"
)

// fakePage is a scriptable Page. Nil function fields mean the operation
// succeeds.
type fakePage struct {
	gotoFn     func(url string) error
	fillFn     func(selector, value string) error
	clickFn    func(selector string) error
	waitFn     func(selector string) error
	attrFn     func(selector, attribute string) (string, error)
	downloadFn func(trigger func() error) (Download, error)
	currentURL string
}

func (p *fakePage) Goto(url string, _ time.Duration) error {
	p.currentURL = url
	if p.gotoFn != nil {
		return p.gotoFn(url)
	}
	return nil
}

func (p *fakePage) Fill(selector, value string, _ time.Duration) error {
	if p.fillFn != nil {
		return p.fillFn(selector, value)
	}
	return nil
}

func (p *fakePage) Click(selector string, _ time.Duration) error {
	if p.clickFn != nil {
		return p.clickFn(selector)
	}
	return nil
}

func (p *fakePage) WaitFor(selector string, _ time.Duration) error {
	if p.waitFn != nil {
		return p.waitFn(selector)
	}
	return nil
}

func (p *fakePage) GetAttribute(selector, attribute string, _ time.Duration) (string, error) {
	if p.attrFn != nil {
		return p.attrFn(selector, attribute)
	}
	return "", nil
}

func (p *fakePage) ExpectDownload(trigger func() error, _ time.Duration) (Download, error) {
	if p.downloadFn != nil {
		return p.downloadFn(trigger)
	}
	return nil, ErrTimeout
}

func (p *fakePage) URL() string { return p.currentURL }

// fakeDownload is a canned Download.
type fakeDownload struct {
	name    string
	url     string
	path    string
	pathErr error
}

func (d fakeDownload) SuggestedFilename() string { return d.name }
func (d fakeDownload) URL() string               { return d.url }
func (d fakeDownload) Path() (string, error)     { return d.path, d.pathErr }

// fakeSession instruments the Session contract, counting Release calls.
type fakeSession struct {
	page       Page
	releaseErr error

	mu       sync.Mutex
	releases int
}

func (s *fakeSession) Page() Page { return s.page }

func (s *fakeSession) OnDownload(func(Download)) {}

func (s *fakeSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	if s.releases > 1 {
		return nil
	}
	return s.releaseErr
}

func (s *fakeSession) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// fakeSource hands out fakeSessions and remembers every one it created.
type fakeSource struct {
	acquireErr error
	releaseErr error
	newPage    func() Page

	mu       sync.Mutex
	sessions []*fakeSession
}

func (f *fakeSource) Acquire(context.Context) (Session, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	var page Page = &fakePage{}
	if f.newPage != nil {
		page = f.newPage()
	}
	s := &fakeSession{page: page, releaseErr: f.releaseErr}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeSource) all() []*fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSession(nil), f.sessions...)
}
