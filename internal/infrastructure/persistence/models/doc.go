// Package models contains the GORM persistence models for users, theses and
// thesis sections. Domain entities stay free of ORM tags; each model maps
// to and from its entity with ToDomain / FromDomain.
package models
