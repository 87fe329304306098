// Copyright (c) 2026 The Gnet Authors. All rights reserved.
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

//go:build freebsd || dragonfly
// +build freebsd dragonfly

package evsource

// Bits that have no NOTE_* counterpart here. NOTE_SIGNAL does not exist,
// and 0x100 is NOTE_CLOSE rather than a funlock notification.
const (
	unsupportedProcessBits = uint(ProcessSignal)
	unsupportedFileSysBits = uint(FileSystemFunlock)
)
