// Package secret provides a small, dependency-light secret resolution layer.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider + Registry)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:vault:project/dotenv/key/SCAN_API_KEY
//   - Inline use:  Bearer secretref:vault:project/dotenv/key/SCAN_API_KEY
package secret
