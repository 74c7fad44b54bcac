// Copyright 2026 The Nodevisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package nodevisor manages sandboxed Node.js "servers" on behalf of many
// tenants.  Each server owns a virtual file tree, a set of startup settings,
// and at most one live child process.  The Manager materializes the file
// tree onto disk, installs dependencies, spawns the entry script, and
// streams everything the process prints to a per-server console that
// viewers can attach to.
//
// Persistence is pluggable through the Store interfaces in provider.go.
// The store package offers an SQLite implementation; NewMemoryStore is
// useful for tests and throwaway instances.
//
// Lifecycle requests are accepted synchronously and carried out in the
// background.  Progress, failures, and process output are reported only
// through the console, so a viewer watching a server never misses a
// decision point.
package nodevisor
