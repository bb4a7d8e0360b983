// Package challenge detects anti-automation challenges on the registry site
// and suspends the crawl until a human operator has solved them.
//
// Solving a challenge is never attempted programmatically. The Gate only
// observes the page: when one of the configured indicators is visible it
// announces the challenge, waits on an Operator and re-inspects the page
// until the indicators are gone.
//
// Checkpoints are cheap when no challenge is present, so the crawler calls
// Gate.Check after every navigation that can trigger one.
package challenge
