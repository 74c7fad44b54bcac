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

package nodevisor

import (
	"path"
	"sort"
	"strings"
)

// dotToken replaces literal dots in stored keys.  Paths containing the
// token itself are not representable, and are refused when creating.
const dotToken = "%2E"

// NormalizePath converts p into the canonical relative form used for keys:
// forward slashes, no leading slash, no "." or ".." elements.  A path that
// tries to climb above the root is clamped to it.  The root itself
// normalizes to "".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// EncodePathKey returns the flat map key for p.
func EncodePathKey(p string) string {
	return strings.ReplaceAll(NormalizePath(p), ".", dotToken)
}

// creatableKey returns the key for a new file or directory at p.
func creatableKey(p string) (string, error) {
	norm := NormalizePath(p)
	if norm == "" || strings.Contains(norm, dotToken) {
		return "", ErrInvalidPath
	}
	return strings.ReplaceAll(norm, ".", dotToken), nil
}

// DecodePathKey reverses EncodePathKey.
func DecodePathKey(key string) string {
	return strings.ReplaceAll(key, dotToken, ".")
}

// Entry is one element of a directory listing.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
}

// Files is the virtual file tree of a server: encoded path key to content.
// There are no directory entries; a directory exists exactly when some
// file lives beneath it.
type Files map[string][]byte

func (f Files) Has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f Files) Get(key string) ([]byte, bool) {
	b, ok := f[key]
	return b, ok
}

func (f Files) Set(key string, b []byte) {
	f[key] = b
}

func (f Files) Delete(key string) {
	delete(f, key)
}

// dirPrefix returns the key prefix shared by everything inside dir.
func dirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}

// isDirKey reports whether any file lives under key.
func (f Files) isDirKey(key string) bool {
	prefix := dirPrefix(key)
	for k := range f {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// fileAncestor reports whether some parent directory of key is stored as
// a file.
func (f Files) fileAncestor(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' && f.Has(key[:i]) {
			return true
		}
	}
	return false
}

// IsDir reports whether p names a (non-empty) directory.  The root is
// always a directory.
func (f Files) IsDir(p string) bool {
	key := EncodePathKey(p)
	return key == "" || f.isDirKey(key)
}

// Read returns the content of the file at p.
func (f Files) Read(p string) ([]byte, error) {
	if b, ok := f[EncodePathKey(p)]; ok {
		return b, nil
	}
	return nil, ErrNotFound
}

// Write stores b at p, replacing an existing file.  It refuses to shadow a
// directory or to nest beneath a file.
func (f Files) Write(p string, b []byte) error {
	key, err := creatableKey(p)
	if err != nil {
		return err
	}
	if f.isDirKey(key) || f.fileAncestor(key) {
		return ErrAlreadyExists
	}
	if b == nil {
		b = []byte{}
	}
	f[key] = b
	return nil
}

// Mkdir validates a directory creation.  Empty directories are not stored,
// so this never changes the tree.
func (f Files) Mkdir(p string) error {
	key, err := creatableKey(p)
	if err != nil {
		return err
	}
	if f.Has(key) || f.fileAncestor(key) {
		return ErrAlreadyExists
	}
	return nil
}

// Remove deletes the file at p, or every file beneath p if it is a
// directory.
func (f Files) Remove(p string) error {
	key := EncodePathKey(p)
	if key == "" {
		return ErrInvalidPath
	}
	if f.Has(key) {
		delete(f, key)
		return nil
	}
	prefix := dirPrefix(key)
	found := false
	for k := range f {
		if strings.HasPrefix(k, prefix) {
			delete(f, k)
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// ListChildren lists the immediate children of dir, directories first,
// then by name.
func (f Files) ListChildren(dir string) []Entry {
	prefix := dirPrefix(EncodePathKey(dir))
	seen := make(map[string]bool)
	for k := range f {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		seg, _, nested := strings.Cut(k[len(prefix):], "/")
		name := DecodePathKey(seg)
		seen[name] = seen[name] || nested
	}
	rv := make([]Entry, 0, len(seen))
	for name, isDir := range seen {
		rv = append(rv, Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(rv, func(i, j int) bool {
		if rv[i].IsDir != rv[j].IsDir {
			return rv[i].IsDir
		}
		return rv[i].Name < rv[j].Name
	})
	return rv
}

// Rename moves a file, or a whole directory, from one path to another.
// Either every key moves or, on any error, none does.
func (f Files) Rename(from, to string) error {
	src, err := creatableKey(from)
	if err != nil {
		return err
	}
	dst, err := creatableKey(to)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}

	if b, ok := f[src]; ok {
		if f.Has(dst) || f.isDirKey(dst) || f.fileAncestor(dst) {
			return ErrAlreadyExists
		}
		delete(f, src)
		f[dst] = b
		return nil
	}

	prefix := src + "/"
	moves := make(map[string]string)
	for k := range f {
		if strings.HasPrefix(k, prefix) {
			moves[k] = dst + "/" + k[len(prefix):]
		}
	}
	if len(moves) == 0 {
		return ErrNotFound
	}
	if strings.HasPrefix(dst+"/", prefix) {
		// Moving a directory beneath itself.
		return ErrInvalidPath
	}
	if f.Has(dst) || f.fileAncestor(dst) {
		return ErrAlreadyExists
	}
	for _, nk := range moves {
		if f.Has(nk) {
			return ErrAlreadyExists
		}
	}

	data := make(map[string][]byte, len(moves))
	for ok := range moves {
		data[ok] = f[ok]
		delete(f, ok)
	}
	for ok, nk := range moves {
		f[nk] = data[ok]
	}
	return nil
}

// Paths returns every stored file path, decoded and sorted.
func (f Files) Paths() []string {
	rv := make([]string, 0, len(f))
	for k := range f {
		rv = append(rv, DecodePathKey(k))
	}
	sort.Strings(rv)
	return rv
}

// Clone returns a copy of the tree that shares no maps with f.  Contents
// are shared, as they are never mutated in place.
func (f Files) Clone() Files {
	rv := make(Files, len(f))
	for k, v := range f {
		rv[k] = v
	}
	return rv
}
