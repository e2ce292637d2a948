// Package security provides secret providers used to protect client
// signature keys at rest. AppKeySecretProvider seals values with a single
// application key; FailoverSecretProvider layers a fallback provider and a
// failure policy on top of any core.SecretProvider.
package security
