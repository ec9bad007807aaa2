package github

var InstallationTokenSource = installationTokenSource
