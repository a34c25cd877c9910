// Package pcie is the single gateway to PCI configuration space for the
// validator: device addressing, 32-bit register access backed by sysfs or
// memory, extended-capability discovery and the IDE extended capability.
//
// Register layouts follow the PCIe Base Specification; only the fields the
// category plugins program or read are modelled.
package pcie
