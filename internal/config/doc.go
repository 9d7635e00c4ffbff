// Package config loads and watches the exporter configuration file.
//
// Top-level types:
//   - Config{Log, Fleet, GitHub}: full tree parsed from YAML
//   - LogConfig: level (debug|info|warn|error)
//   - FleetConfig: listen, state_file
//   - GitHubConfig: listen, repo, repo_dir, fallback_repo, gh_binary,
//     git_binary, command_timeout, list_limit, detail_limit
//
// Load(path) reads the YAML file, applies defaults (:9101 / :9102, the
// /home/ubuntu/pdn checkout, 30s command timeout, 100/20 limits), then
// validates. Default() returns the same defaults without a file.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. A reload that fails to parse or
// validate is logged and skipped.
package config
