// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package teamflow assembles the planner's client: one identity
// session, the data service acting as that session's user, and the
// synchronizers built on it.
//
//	client, err := teamflow.New(teamflow.Config{
//	    Store:    store,
//	    Identity: provider,
//	    Logger:   logger,
//	})
//	defer client.Close()
//
//	err = client.Session().SignIn(ctx, email, password)
//	tasks := client.Tasks()
//	err = tasks.Load(ctx, tasksync.FilterSpec{Filter: tasksync.FilterUrgent})
//
// Synchronizers returned by the factories are owned by the caller and
// must be closed. The client runs the presence heartbeat itself while
// the session is signed in.
package teamflow
