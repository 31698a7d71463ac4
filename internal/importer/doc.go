// Package importer reconciles a legacy draft with the store and commits it.
//
// The service is a two-state machine (idle, draft pending). Callers pare the
// draft down themselves (legacy.Draft.RetainActivities and friends) and pass
// their village choice in CommitOptions; Commit writes the plant, its
// activities and schedules, and any newly created village in one atomic
// storage.ChangeSet.
package importer
