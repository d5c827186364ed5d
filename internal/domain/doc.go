// Package domain contains the core entity types for host correlation:
// Hosts contributed by scan sources, DeviceIdentities grouping multi-homed
// devices, Conflicts recording field disagreements between merge candidates,
// and the derived correlation tags used for similarity scoring.
//
// Merge logic lives here as a pure function (BuildMergePlan) so the
// correlation phases can be tested without a live store; the repository
// applies a MergePlan transactionally.
package domain
