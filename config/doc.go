// Package config exposes per-provider credentials, endpoints and model
// catalogs loaded from a single YAML document keyed
// {category → provider → settings}. The store is read-only for callers;
// reloads swap an atomic snapshot so readers always see a full document.
package config
