// Package services implements the driving port interfaces.
// Services contain the retrieval business logic - query understanding,
// dual-path search orchestration with score fusion, and project-scoped
// filtering - and orchestrate calls to driven ports (adapters).
package services
