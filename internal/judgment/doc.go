// Package judgment defines the typed contract for the semantic decisions the
// pipeline delegates: character extraction, storyboarding, camera parenting,
// shot decomposition, reference selection and script writing.
//
// Service is the full capability set. Consumers declare the one or two methods
// they need as their own interface so tests can stub them directly. NewLLM
// backs the contract with a JSON chat endpoint; any response that does not fit
// the expected shape is reported as ErrMalformed, which callers retry like a
// transport failure.
package judgment
