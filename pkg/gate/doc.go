// Package gate implements per-engine admission control for generation
// tasks.
//
// Each engine has an independent counting semaphore bounding how many
// Generate calls may be in flight at once. An attempt beyond the limit
// either waits for a bounded interval or is rejected as busy, depending on
// configuration; the manager then skips to the next candidate. Limits can
// be updated live, affecting only subsequent admissions.
package gate
