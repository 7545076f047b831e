// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package reffs implements the in-memory object store at the heart of
// RefFS: the inode table, directory graph, file and xattr storage, the
// checkpoint/restore engine and the on-disk pickle codec. It is consumed
// by a FUSE low-level protocol adapter (package reffsfuse); this package
// has no dependency on the kernel or on any particular transport.
package reffs

// InodeID identifies a filesystem object. Zero means "not found"; it is
// never the ID of a live inode.
type InodeID uint64

// RootInodeID is the distinguished ID of the filesystem root.
const RootInodeID InodeID = 1

// placeholderInodeID is a reserved sentinel slot below the root, mirroring
// the reserved low IDs in the teacher's inode table.
const placeholderInodeID InodeID = 0

// HandleID is an opaque identifier for an open file or directory handle.
type HandleID uint64

// DirOffset is an opaque cursor position within a directory listing. See
// readdir.go for the cookie encoding.
type DirOffset uint64

// GenerationNumber distinguishes incarnations of a reused InodeID. RefFS
// bumps it each time a slot is recycled so that stale NFS-style handles
// (were RefFS ever exported over NFS, which it is not) would be rejected;
// within a single mount it is mostly informational.
type GenerationNumber uint64
