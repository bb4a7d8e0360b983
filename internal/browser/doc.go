// Package browser drives a real Chrome instance through the DevTools
// protocol using chromedp.
//
// A ChromeSession owns one browser process with one tab. Element handles
// are never returned to callers: every interaction takes a selector (and a
// position when several elements match) and queries the live DOM again, so
// a navigation can never leave a caller holding a stale reference.
package browser
