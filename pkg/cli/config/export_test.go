package config

var ErrorValues = errorValues
