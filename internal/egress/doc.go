// Package egress decides how the browser reaches the registry: directly,
// through a user supplied proxy, or through an embedded Tor daemon started
// with tornago.
//
// A Route carries the proxy server string handed to the browser and owns
// whatever process was started for it. Proxies are probed before a crawl so
// that a dead proxy fails fast instead of surfacing as page load timeouts.
package egress
