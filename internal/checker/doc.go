// Package checker assembles the check families into one registry.
//
// Each subpackage holds the checks for one technology and exposes a
// Register function:
//
//   - dnscheck, ftpcheck, smtpcheck, sshcheck, portcheck: network services
//   - httpcheck, tlscheck: web endpoints
//   - mysqlcheck, pgcheck: database configuration
//   - objectstore, k8scheck: cloud resources
//   - sast, format, sca: source code, artifacts and dependencies
//
// Checks are plain *assert.Check values. The CLI only needs NewRegistry to
// resolve the names used in a plan.
package checker
