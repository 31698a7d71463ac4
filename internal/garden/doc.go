// Package garden holds plantit's domain records and the schedule rules.
//
// Records reference each other by id only: a plant exclusively owns its
// activities, photos and schedules (PlantID), and weakly references its
// village (VillageID, empty for none). Repository code resolves the graph.
package garden
