// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package inmem keeps cached payloads and index entries in a process local map.
It needs no backend to be provisioned. Nothing is ever evicted, so use it for
tests and small content spaces only.
*/
package inmem
