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

/*
Package evsource delivers kernel and application events to callbacks that
run on queues chosen by the application.

A source watches one producer of events: a timer, a signal, a readable or
writable descriptor, a process, a file, the memory pressure of the system
or values merged by the application itself. Events coalesce into the
pending data of the source until its event handler runs, so a handler sees
how many times a timer expired or which file events happened since the
previous invocation, never a backlog of individual events.

A file watcher built upon evsource is shown below:

	package main

	import (
		"log"
		"os"

		"github.com/panjf2000/evsource"
	)

	func main() {
		f, err := os.Open("config.yaml")
		if err != nil {
			log.Fatal(err)
		}
		src, err := evsource.NewFileSystemObject(int(f.Fd()),
			evsource.FileSystemWrite|evsource.FileSystemDelete|evsource.FileSystemRename)
		if err != nil {
			log.Fatal(err)
		}
		done := make(chan struct{})
		src.SetEventHandler(func() {
			log.Printf("config.yaml: %v", src.Data())
			if src.Data()&(evsource.FileSystemDelete|evsource.FileSystemRename) != 0 {
				src.Cancel()
			}
		})
		src.SetCancelHandler(func() {
			f.Close()
			close(done)
		})
		src.Activate()
		<-done
	}
*/
package evsource
