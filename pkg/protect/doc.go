// Package protect retrieves camera event video clips from a local UniFi
// Protect controller by driving its web console through a headless
// Playwright browser session.
//
// The controller exposes no stable public API for video export, so the
// pipeline logs in through the console's login form, navigates to the
// event-specific page, and resolves the clip either by capturing the
// browser download or by scraping the short-lived direct link.
//
// # Pipeline
//
// One retrieval is composed of four parts:
//
//  1. SessionManager: launches a fresh browser/context/page per attempt and
//     hands back a ScopedSession.
//  2. Authenticator: a single login attempt against the console.
//  3. Locator: navigates to the event link and resolves the clip.
//  4. Retriever: composes the above and releases the session on every exit
//     path.
//
// # Session lifecycle
//
// The central correctness property is deterministic teardown. A
// ScopedSession tracks every event listener registered through it; Release
// deregisters the handles in reverse registration order, drains in-flight
// listener callbacks, and only then closes page, context, and browser. No
// callback scheduled by a session can run against its disposed resources,
// and Release is idempotent so the unconditional deferred release in the
// retriever can never double-close.
//
// # Failure model
//
// Stage errors wrap the sentinels ErrSessionLaunch, ErrAuthentication,
// ErrNotFound, and ErrTimeout. The retriever classifies every failure into
// a *RetrievalError carrying a Kind discriminator; nothing is retried
// internally. Retry and backoff policy belongs to the caller.
package protect
