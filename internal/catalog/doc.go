// Package catalog holds the capability-tagged objects the control plane
// deploys: activities, workflows, runners and worker classes.
//
// Code modules evaluated by the registry declare objects through the
// registration functions exported to the interpreter under the import path
// "launchpad/catalog". Runners and worker classes are compiled into the
// binary and registered as built-ins.
package catalog
